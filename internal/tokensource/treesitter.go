package tokensource

import (
	"context"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// maxValueBytes caps the leaf text attached to a token when values are
// included. Longer leaves (string literals, mostly) keep only their kind.
const maxValueBytes = 48

// TokenizerOptions controls how an AST is flattened.
type TokenizerOptions struct {
	// IncludeValues appends the source text of named leaf nodes
	// ("identifier:main" instead of "identifier").
	IncludeValues bool

	// KeepComments emits comment nodes; they are skipped by default.
	KeepComments bool

	// KeepAnonymous emits anonymous nodes (punctuation and keywords).
	KeepAnonymous bool
}

// TreeSitterTokenizer flattens tree-sitter ASTs into token sequences.
// A new tree-sitter parser is created per Tokenize call, so one tokenizer
// can be shared by concurrent goroutines.
type TreeSitterTokenizer struct {
	languages map[Language]*tree_sitter.Language
	opts      TokenizerOptions
}

// NewTreeSitterTokenizer registers the Go, TypeScript, TSX, Python, Rust,
// Java and JavaScript grammars.
func NewTreeSitterTokenizer(opts TokenizerOptions) *TreeSitterTokenizer {
	return &TreeSitterTokenizer{
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangTSX:        tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
			LangJava:       tree_sitter.NewLanguage(tree_sitter_java.Language()),
			LangJavaScript: tree_sitter.NewLanguage(tree_sitter_javascript.Language()),
		},
		opts: opts,
	}
}

// SupportedLanguages returns the registered languages.
func (t *TreeSitterTokenizer) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(t.languages))
	for l := range t.languages {
		langs = append(langs, l)
	}
	return langs
}

// Tokenize parses source and returns its pre-order token sequence.
func (t *TreeSitterTokenizer) Tokenize(_ context.Context, path string, source []byte, lang Language) ([]string, error) {
	tsLang, ok := t.languages[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	defer tree.Close()

	cursor := tree.RootNode().Walk()
	defer cursor.Close()

	var tokens []string
	t.walk(cursor, source, &tokens)
	return tokens, nil
}

func (t *TreeSitterTokenizer) walk(cursor *tree_sitter.TreeCursor, source []byte, tokens *[]string) {
	node := cursor.Node()
	kind := node.Kind()

	if isComment(kind) && !t.opts.KeepComments {
		return
	}

	if node.IsNamed() || t.opts.KeepAnonymous {
		*tokens = append(*tokens, t.token(node, kind, source))
	}

	if cursor.GotoFirstChild() {
		t.walk(cursor, source, tokens)
		for cursor.GotoNextSibling() {
			t.walk(cursor, source, tokens)
		}
		cursor.GotoParent()
	}
}

func (t *TreeSitterTokenizer) token(node *tree_sitter.Node, kind string, source []byte) string {
	if !t.opts.IncludeValues || !node.IsNamed() || node.ChildCount() != 0 {
		return kind
	}
	text := strings.TrimSpace(node.Utf8Text(source))
	if text == "" || len(text) > maxValueBytes || strings.ContainsAny(text, "\r\n") {
		return kind
	}
	return kind + ":" + text
}
