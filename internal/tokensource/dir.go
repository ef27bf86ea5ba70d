package tokensource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TreeSitterSource walks a directory tree and tokenizes every file whose
// extension maps to a selected language.
type TreeSitterSource struct {
	Root        string
	Languages   map[Language]bool // nil selects every language
	ExcludeDirs []string

	// MaxFileBytes skips larger files. Zero disables the limit.
	MaxFileBytes int

	// Workers bounds concurrent parses. Zero uses GOMAXPROCS.
	Workers int

	Tokenizer *TreeSitterTokenizer
}

type candidate struct {
	abs  string
	rel  string
	lang Language
}

// Read walks Root, then tokenizes the collected files in parallel. Files are
// returned in lexical path order regardless of completion order.
func (s *TreeSitterSource) Read(ctx context.Context) (*Batch, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("cannot access source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root is not a directory: %s", s.Root)
	}

	tok := s.Tokenizer
	if tok == nil {
		tok = NewTreeSitterTokenizer(TokenizerOptions{})
	}

	excludeSet := make(map[string]bool, len(s.ExcludeDirs))
	for _, d := range s.ExcludeDirs {
		excludeSet[d] = true
	}

	var candidates []candidate
	walkErr := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.Root && (name == ".git" || excludeSet[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := LanguageForPath(path)
		if !ok || (s.Languages != nil && !s.Languages[lang]) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			rel = path
		}
		candidates = append(candidates, candidate{abs: path, rel: filepath.ToSlash(rel), lang: lang})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk: %w", walkErr)
	}

	type outcome struct {
		tokens []string
		skip   string
	}
	results := make([]outcome, len(candidates))

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(c.abs)
			if err != nil {
				results[i].skip = fmt.Sprintf("read: %v", err)
				return nil
			}
			if s.MaxFileBytes > 0 && len(source) > s.MaxFileBytes {
				results[i].skip = fmt.Sprintf("file has %d bytes, limit is %d", len(source), s.MaxFileBytes)
				return nil
			}
			tokens, err := tok.Tokenize(gctx, c.rel, source, c.lang)
			if err != nil {
				results[i].skip = err.Error()
				return nil
			}
			if len(tokens) == 0 {
				results[i].skip = "no tokens"
				return nil
			}
			results[i].tokens = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{}
	for i, r := range results {
		if r.skip != "" {
			batch.Skipped = append(batch.Skipped, Skip{Path: candidates[i].rel, Reason: r.skip})
			continue
		}
		batch.Files = append(batch.Files, File{Name: candidates[i].rel, Tokens: r.tokens})
	}
	return batch, nil
}
