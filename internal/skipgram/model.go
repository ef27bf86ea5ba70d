package skipgram

import (
	"fmt"
	"math/rand/v2"
)

// State is the lifecycle stage of a Model.
type State int

const (
	Uninitialized State = iota
	Training
	Trained
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Training:
		return "training"
	case Trained:
		return "trained"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Model holds the center and context matrices, each row-major V x D.
// Rows are owned by their token id.
type Model struct {
	V, D    int
	Center  []float32
	Context []float32

	state  State
	epochs int
}

// newModel allocates both matrices. Center rows are drawn uniformly from
// [-0.5/D, 0.5/D); context rows start at zero.
func newModel(v, d int, rng *rand.Rand) *Model {
	m := &Model{
		V:       v,
		D:       d,
		Center:  make([]float32, v*d),
		Context: make([]float32, v*d),
	}
	scale := 1 / float32(d)
	for i := range m.Center {
		m.Center[i] = (rng.Float32() - 0.5) * scale
	}
	return m
}

// State reports where the model is in Uninitialized -> Training -> Trained.
// A cancelled run stays in Training.
func (m *Model) State() State { return m.state }

// Epochs returns the number of completed epochs.
func (m *Model) Epochs() int { return m.epochs }

// CenterRow returns the center embedding of id, aliasing the matrix.
func (m *Model) CenterRow(id int) []float32 { return m.Center[id*m.D : (id+1)*m.D] }

// ContextRow returns the context embedding of id, aliasing the matrix.
func (m *Model) ContextRow(id int) []float32 { return m.Context[id*m.D : (id+1)*m.D] }
