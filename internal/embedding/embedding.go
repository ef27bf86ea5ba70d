// Package embedding persists trained token embeddings and answers
// read-only queries over them.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"

	"github.com/dusk-indust/ast2vec/internal/skipgram"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

// ErrTokenNotFound is returned by queries for a token outside the vocabulary.
var ErrTokenNotFound = errors.New("token not in vocabulary")

// Embeddings is a frozen vocabulary paired with its center vectors.
type Embeddings struct {
	RunID     string
	CreatedAt time.Time
	Vocab     *vocab.Vocabulary
	Dimension int

	vectors []float32 // row-major V x Dimension
	norms   []float32
}

// Neighbor is one nearest-neighbor result.
type Neighbor struct {
	Token      string  `json:"token"`
	ID         int     `json:"id"`
	Count      int64   `json:"count"`
	Similarity float64 `json:"similarity"`
}

// FromModel copies the center matrix of m. An empty runID gets a fresh UUID.
func FromModel(v *vocab.Vocabulary, m *skipgram.Model, runID string) (*Embeddings, error) {
	if v.Len() != m.V {
		return nil, fmt.Errorf("model has %d rows, vocabulary has %d tokens", m.V, v.Len())
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return newEmbeddings(runID, time.Now().UTC(), v, m.D, slices.Clone(m.Center)), nil
}

// New wraps row-major vectors of the given dimension. The slice is retained.
func New(runID string, v *vocab.Vocabulary, dim int, vectors []float32) (*Embeddings, error) {
	if dim <= 0 || len(vectors) != v.Len()*dim {
		return nil, fmt.Errorf("%d values do not form %d rows of dimension %d", len(vectors), v.Len(), dim)
	}
	return newEmbeddings(runID, time.Now().UTC(), v, dim, vectors), nil
}

func newEmbeddings(runID string, created time.Time, v *vocab.Vocabulary, dim int, vectors []float32) *Embeddings {
	e := &Embeddings{
		RunID:     runID,
		CreatedAt: created,
		Vocab:     v,
		Dimension: dim,
		vectors:   vectors,
		norms:     make([]float32, v.Len()),
	}
	for id := range e.norms {
		e.norms[id] = blas32.Nrm2(e.vec(id))
	}
	return e
}

func (e *Embeddings) vec(id int) blas32.Vector {
	return blas32.Vector{N: e.Dimension, Inc: 1, Data: e.VectorByID(id)}
}

// Len returns the vocabulary size.
func (e *Embeddings) Len() int { return e.Vocab.Len() }

// VectorByID returns the row of id. The slice aliases internal storage and
// must not be modified.
func (e *Embeddings) VectorByID(id int) []float32 {
	return e.vectors[id*e.Dimension : (id+1)*e.Dimension]
}

// Vector returns the embedding of token.
func (e *Embeddings) Vector(token string) ([]float32, bool) {
	id, ok := e.Vocab.ID(token)
	if !ok {
		return nil, false
	}
	return e.VectorByID(id), true
}

// Norm returns the Euclidean norm of the row of id.
func (e *Embeddings) Norm(id int) float32 { return e.norms[id] }

// Similarity returns the cosine similarity of two ids. Zero vectors have
// similarity 0 to everything.
func (e *Embeddings) Similarity(a, b int) float64 {
	if e.norms[a] == 0 || e.norms[b] == 0 {
		return 0
	}
	return float64(blas32.Dot(e.vec(a), e.vec(b))) / (float64(e.norms[a]) * float64(e.norms[b]))
}

// Nearest returns the k tokens most cosine-similar to token, excluding the
// token itself.
func (e *Embeddings) Nearest(token string, k int) ([]Neighbor, error) {
	id, ok := e.Vocab.ID(token)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTokenNotFound, token)
	}
	return e.NearestToVector(e.VectorByID(id), k, id), nil
}

// NearestToVector ranks every id by cosine similarity to q and returns the
// top k, skipping excluded ids. Ties go to the lower id.
func (e *Embeddings) NearestToVector(q []float32, k int, exclude ...int) []Neighbor {
	if k <= 0 || len(q) != e.Dimension {
		return nil
	}
	qv := blas32.Vector{N: len(q), Inc: 1, Data: q}
	qn := float64(blas32.Nrm2(qv))

	out := make([]Neighbor, 0, e.Len())
	for id := 0; id < e.Len(); id++ {
		if slices.Contains(exclude, id) {
			continue
		}
		sim := 0.0
		if qn > 0 && e.norms[id] > 0 {
			sim = float64(blas32.Dot(qv, e.vec(id))) / (qn * float64(e.norms[id]))
		}
		out = append(out, Neighbor{
			Token:      e.Vocab.Token(id),
			ID:         id,
			Count:      e.Vocab.Count(id),
			Similarity: sim,
		})
	}
	slices.SortStableFunc(out, func(a, b Neighbor) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return a.ID - b.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Sanitize returns, in id order, the ids whose vector norm lies within
// stddevs population standard deviations of the mean norm. Rows far from
// the bulk are usually under-trained rare tokens.
func (e *Embeddings) Sanitize(stddevs float64) []int {
	norms := make([]float64, len(e.norms))
	for i, n := range e.norms {
		norms[i] = float64(n)
	}
	mean, std := stat.PopMeanStdDev(norms, nil)

	var keep []int
	for id, n := range norms {
		if math.Abs(n-mean) <= stddevs*std {
			keep = append(keep, id)
		}
	}
	return keep
}
