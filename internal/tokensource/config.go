package tokensource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/ast2vec/internal/config"
)

// FromConfig picks the Source for cfg.Path: a .jsonl or .ndjson file is
// read as a pre-extracted token stream, a directory is walked and parsed
// with tree-sitter.
func FromConfig(cfg config.Source, workers int) (Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("source path is required")
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot access source: %w", err)
	}

	if !info.IsDir() {
		switch strings.ToLower(filepath.Ext(cfg.Path)) {
		case ".jsonl", ".ndjson":
			return &JSONLinesSource{Path: cfg.Path}, nil
		}
		return nil, fmt.Errorf("source %s is neither a directory nor a .jsonl token stream", cfg.Path)
	}

	var langs map[Language]bool
	if len(cfg.Languages) > 0 {
		langs = ParseLanguages(cfg.Languages)
		if len(langs) == 0 {
			return nil, fmt.Errorf("no supported language in %v", cfg.Languages)
		}
	}
	return &TreeSitterSource{
		Root:         cfg.Path,
		Languages:    langs,
		ExcludeDirs:  cfg.ExcludeDirs,
		MaxFileBytes: cfg.MaxFileBytes,
		Workers:      workers,
		Tokenizer: NewTreeSitterTokenizer(TokenizerOptions{
			IncludeValues: cfg.IncludeValues,
			KeepComments:  cfg.KeepComments,
		}),
	}, nil
}
