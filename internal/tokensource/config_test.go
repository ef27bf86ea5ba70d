package tokensource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/ast2vec/internal/config"
)

func TestFromConfig_Directory(t *testing.T) {
	src, err := FromConfig(config.Source{
		Path:          filepath.Join("..", "..", "testdata", "fixtures", "project"),
		Languages:     []string{"go", "py"},
		ExcludeDirs:   []string{"vendor"},
		IncludeValues: true,
		MaxFileBytes:  1000,
	}, 2)
	require.NoError(t, err)

	ts, ok := src.(*TreeSitterSource)
	require.True(t, ok)
	assert.True(t, ts.Languages[LangGo])
	assert.True(t, ts.Languages[LangPython])
	assert.False(t, ts.Languages[LangJava])
	assert.Equal(t, []string{"vendor"}, ts.ExcludeDirs)
	assert.Equal(t, 1000, ts.MaxFileBytes)
	assert.Equal(t, 2, ts.Workers)
	assert.True(t, ts.Tokenizer.opts.IncludeValues)
}

func TestFromConfig_AllLanguagesByDefault(t *testing.T) {
	src, err := FromConfig(config.Source{Path: t.TempDir()}, 0)
	require.NoError(t, err)
	assert.Nil(t, src.(*TreeSitterSource).Languages)
}

func TestFromConfig_JSONLines(t *testing.T) {
	src, err := FromConfig(config.Source{Path: filepath.Join("..", "..", "testdata", "fixtures", "tokens.jsonl")}, 0)
	require.NoError(t, err)
	assert.IsType(t, &JSONLinesSource{}, src)
}

func TestFromConfig_Errors(t *testing.T) {
	_, err := FromConfig(config.Source{}, 0)
	assert.ErrorContains(t, err, "required")

	_, err = FromConfig(config.Source{Path: filepath.Join(t.TempDir(), "missing")}, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = FromConfig(config.Source{Path: txt}, 0)
	assert.ErrorContains(t, err, "neither")

	_, err = FromConfig(config.Source{Path: t.TempDir(), Languages: []string{"cobol"}}, 0)
	assert.ErrorContains(t, err, "no supported language")
}
