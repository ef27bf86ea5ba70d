// Package tokensource produces the per-file token sequences consumed by the
// vocabulary builder and the corpus encoder.
package tokensource

import "context"

// File is one source file flattened into an ordered token sequence.
type File struct {
	Name   string   `json:"name"`
	Tokens []string `json:"tokens"`
}

// Skip records a file that produced no token sequence and why.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Batch is the result of reading a Source.
type Batch struct {
	Files   []File
	Skipped []Skip
}

// Source yields token sequences. Implementations: TreeSitterSource (source
// trees), JSONLinesSource (pre-extracted streams), Static (in memory).
type Source interface {
	Read(ctx context.Context) (*Batch, error)
}

// Static is an in-memory Source.
type Static []File

// Read returns the files unchanged.
func (s Static) Read(_ context.Context) (*Batch, error) {
	return &Batch{Files: []File(s)}, nil
}

// TokenCount returns the total number of tokens across files.
func TokenCount(files []File) int {
	n := 0
	for _, f := range files {
		n += len(f.Tokens)
	}
	return n
}
