// Package status reports how far a project has progressed from
// configuration to trained embeddings and a persisted neighbor index.
package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/embedding"
)

// StepInfo describes the completion state of a single step.
type StepInfo struct {
	Step     int
	Name     string // human-readable name (e.g. "Embeddings")
	Complete bool
	Path     string // absolute path of the step's output
	Detail   string // short summary, or why the step is incomplete
}

// ProjectStatus holds the status of one project directory.
type ProjectStatus struct {
	Root     string
	Steps    []StepInfo
	NextStep int // -1 if all complete

	// Embeddings is set when the artifact loads.
	Embeddings *ArtifactSummary
}

// ArtifactSummary is the header of a loaded embeddings artifact.
type ArtifactSummary struct {
	RunID     string
	CreatedAt string
	VocabSize int
	Dimension int
	Policy    string
}

const (
	StepConfig = iota
	StepEmbeddings
	StepIndex
)

var stepLabels = [3]string{
	"Configuration",
	"Embeddings",
	"Neighbor Index",
}

// NextStep returns the first incomplete step, or -1 if all are complete.
func NextStep(steps []StepInfo) int {
	for _, s := range steps {
		if !s.Complete {
			return s.Step
		}
	}
	return -1
}

// GetProjectStatus inspects projectRoot. Only an unreadable config file is
// an error; missing outputs are reported as incomplete steps.
func GetProjectStatus(projectRoot string) (ProjectStatus, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return ProjectStatus{}, fmt.Errorf("resolving project root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return ProjectStatus{}, err
	}

	ps := ProjectStatus{Root: root, Steps: make([]StepInfo, len(stepLabels))}
	for i := range ps.Steps {
		ps.Steps[i] = StepInfo{Step: i, Name: stepLabels[i]}
	}

	cfgStep := &ps.Steps[StepConfig]
	for _, name := range []string{"ast2vec.yml", "ast2vec.yaml"} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			cfgStep.Complete = true
			cfgStep.Path = path
			cfgStep.Detail = fmt.Sprintf("dimension %d, window %d, %d epochs",
				cfg.Training.Dimension, cfg.Training.Window, cfg.Training.Epochs)
			break
		}
	}
	if !cfgStep.Complete {
		cfgStep.Detail = "using defaults"
	}

	embStep := &ps.Steps[StepEmbeddings]
	embStep.Path = resolve(root, cfg.Output)
	if emb, err := embedding.Load(embStep.Path); err == nil {
		embStep.Complete = true
		ps.Embeddings = &ArtifactSummary{
			RunID:     emb.RunID,
			CreatedAt: emb.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			VocabSize: emb.Len(),
			Dimension: emb.Dimension,
			Policy:    string(emb.Vocab.Policy()),
		}
		embStep.Detail = fmt.Sprintf("%d tokens x %d", emb.Len(), emb.Dimension)
	} else if errors.Is(err, fs.ErrNotExist) {
		embStep.Detail = "not trained"
	} else {
		embStep.Detail = fmt.Sprintf("unreadable: %v", err)
	}

	idxStep := &ps.Steps[StepIndex]
	if cfg.Index.Path == "" {
		idxStep.Detail = "no index path configured"
	} else {
		idxStep.Path = resolve(root, cfg.Index.Path)
		if _, err := os.Stat(idxStep.Path); err == nil {
			idxStep.Complete = true
		} else {
			idxStep.Detail = "not built"
		}
	}

	ps.NextStep = NextStep(ps.Steps)
	return ps, nil
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
