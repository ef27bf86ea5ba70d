package tokensource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single JSON line; token streams of large files can
// be long.
const maxLineBytes = 64 * 1024 * 1024

// JSONLinesSource reads token streams written by external extractors, one
// JSON object per line: {"name": "path/to/file", "tokens": ["...", ...]}.
type JSONLinesSource struct {
	Path string
}

// Read parses the whole file.
func (s *JSONLinesSource) Read(ctx context.Context) (*Batch, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open token stream: %w", err)
	}
	defer f.Close()
	return ReadJSONLines(ctx, f)
}

// ReadJSONLines decodes a JSON-lines token stream from r. Blank lines are
// ignored; entries without tokens are reported as skipped.
func ReadJSONLines(ctx context.Context, r io.Reader) (*Batch, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	batch := &Batch{}
	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f File
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("token stream line %d: %w", line, err)
		}
		if f.Name == "" {
			f.Name = fmt.Sprintf("line-%d", line)
		}
		if len(f.Tokens) == 0 {
			batch.Skipped = append(batch.Skipped, Skip{Path: f.Name, Reason: "no tokens"})
			continue
		}
		batch.Files = append(batch.Files, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("token stream: %w", err)
	}
	return batch, nil
}

// WriteJSONLines writes files in the format read by ReadJSONLines.
func WriteJSONLines(w io.Writer, files []File) error {
	enc := json.NewEncoder(w)
	for _, f := range files {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encode %s: %w", f.Name, err)
		}
	}
	return nil
}
