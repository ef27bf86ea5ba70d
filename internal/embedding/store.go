package embedding

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/skipgram"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

const (
	// Format tags every artifact written by this package.
	Format = "ast2vec.embeddings"

	// Version is the artifact layout version.
	Version = 1
)

// FormatMismatchError reports a structurally invalid artifact.
type FormatMismatchError struct {
	Field string
	Want  any
	Got   any
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("format mismatch: %s: want %v, got %v", e.Field, e.Want, e.Got)
}

func mismatch(field string, want, got any) error {
	return &FormatMismatchError{Field: field, Want: want, Got: got}
}

// artifact is the persisted JSON document.
type artifact struct {
	Format             string               `json:"format"`
	Version            int                  `json:"version"`
	RunID              string               `json:"runId"`
	CreatedAt          time.Time            `json:"createdAt"`
	VocabSize          int                  `json:"vocabSize"`
	Dimension          int                  `json:"dimension"`
	UnknownToken       string               `json:"unknownToken,omitempty"`
	Policy             config.UnknownPolicy `json:"policy"`
	MinCount           int                  `json:"minCount"`
	SubsampleThreshold float64              `json:"subsampleThreshold"`
	Tokens             []vocab.Entry        `json:"tokens"`
	Vectors            [][]float32          `json:"vectors"`
}

// Write serializes e as an artifact document.
func (e *Embeddings) Write(w io.Writer) error {
	opts := e.Vocab.Options()
	a := artifact{
		Format:             Format,
		Version:            Version,
		RunID:              e.RunID,
		CreatedAt:          e.CreatedAt,
		VocabSize:          e.Len(),
		Dimension:          e.Dimension,
		Policy:             opts.Policy,
		MinCount:           opts.MinCount,
		SubsampleThreshold: opts.SubsampleThreshold,
		Tokens:             e.Vocab.Entries(),
		Vectors:            make([][]float32, e.Len()),
	}
	if _, ok := e.Vocab.UnknownID(); ok {
		a.UnknownToken = opts.UnknownToken
	}
	for id := range a.Vectors {
		a.Vectors[id] = e.VectorByID(id)
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(&a); err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	return bw.Flush()
}

// Save writes e to path. The artifact appears complete or not at all: it is
// written to a temporary file in the same directory, synced and renamed.
func (e *Embeddings) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = e.Write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

// Save persists the vocabulary and center matrix of a trained model under a
// fresh run id.
func Save(path string, v *vocab.Vocabulary, m *skipgram.Model) (*Embeddings, error) {
	e, err := FromModel(v, m, "")
	if err != nil {
		return nil, err
	}
	return e, e.Save(path)
}

// Write serializes a trained model to w under a fresh run id.
func Write(w io.Writer, v *vocab.Vocabulary, m *skipgram.Model) error {
	e, err := FromModel(v, m, "")
	if err != nil {
		return err
	}
	return e.Write(w)
}

// Load reads an artifact from path.
func Load(path string) (*Embeddings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()

	e, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return e, nil
}

// Read decodes and validates an artifact. Structural problems are reported
// as *FormatMismatchError.
func Read(r io.Reader) (*Embeddings, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}

	switch {
	case a.Format != Format:
		return nil, mismatch("format", Format, a.Format)
	case a.Version != Version:
		return nil, mismatch("version", Version, a.Version)
	case a.VocabSize <= 0:
		return nil, mismatch("vocabSize", "positive", a.VocabSize)
	case a.Dimension <= 0:
		return nil, mismatch("dimension", "positive", a.Dimension)
	case len(a.Tokens) != a.VocabSize:
		return nil, mismatch("tokens", a.VocabSize, len(a.Tokens))
	case len(a.Vectors) != a.VocabSize:
		return nil, mismatch("vectors", a.VocabSize, len(a.Vectors))
	}

	entries := make([]vocab.Entry, a.VocabSize)
	placed := make([]bool, a.VocabSize)
	seen := make(map[string]bool, a.VocabSize)
	for i, t := range a.Tokens {
		if t.ID < 0 || t.ID >= a.VocabSize || placed[t.ID] {
			return nil, mismatch(fmt.Sprintf("tokens[%d].id", i), "unique id in [0, vocabSize)", t.ID)
		}
		if seen[t.Token] {
			return nil, mismatch(fmt.Sprintf("tokens[%d].token", i), "unique token", t.Token)
		}
		if t.Count < 0 {
			return nil, mismatch(fmt.Sprintf("tokens[%d].count", i), ">= 0", t.Count)
		}
		placed[t.ID] = true
		seen[t.Token] = true
		entries[t.ID] = t
	}

	// Rows are checked before allocating so a bogus dimension cannot size
	// the matrix.
	for i, row := range a.Vectors {
		if len(row) != a.Dimension {
			return nil, mismatch(fmt.Sprintf("vectors[%d]", i), a.Dimension, len(row))
		}
	}
	vectors := make([]float32, 0, len(a.Vectors)*a.Dimension)
	for _, row := range a.Vectors {
		vectors = append(vectors, row...)
	}

	v, err := vocab.FromEntries(entries, vocab.Options{
		MinCount:           a.MinCount,
		SubsampleThreshold: a.SubsampleThreshold,
		Policy:             a.Policy,
		UnknownToken:       a.UnknownToken,
	})
	if err != nil {
		return nil, fmt.Errorf("rebuild vocabulary: %w", err)
	}
	return newEmbeddings(a.RunID, a.CreatedAt, v, a.Dimension, vectors), nil
}
