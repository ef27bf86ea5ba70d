package tokensource

import (
	"path/filepath"
	"strings"
)

// Language identifies a tree-sitter grammar.
type Language string

const (
	LangGo         Language = "go"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
)

// AllLanguages lists every grammar registered by NewTreeSitterTokenizer.
var AllLanguages = []Language{LangGo, LangTypeScript, LangTSX, LangPython, LangRust, LangJava, LangJavaScript}

// extToLanguage maps file extensions to grammars.
var extToLanguage = map[string]Language{
	".go":   LangGo,
	".ts":   LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".rs":   LangRust,
	".java": LangJava,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
}

// LanguageForPath returns the grammar for a file path by extension.
func LanguageForPath(path string) (Language, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// ParseLanguages converts names such as "go", "ts" or "py" into a language
// set. An empty list selects every language.
func ParseLanguages(names []string) map[Language]bool {
	set := make(map[Language]bool)
	if len(names) == 0 {
		for _, l := range AllLanguages {
			set[l] = true
		}
		return set
	}
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "go", "golang":
			set[LangGo] = true
		case "ts", "typescript":
			set[LangTypeScript] = true
			set[LangTSX] = true
		case "tsx":
			set[LangTSX] = true
		case "py", "python":
			set[LangPython] = true
		case "rs", "rust":
			set[LangRust] = true
		case "java":
			set[LangJava] = true
		case "js", "javascript":
			set[LangJavaScript] = true
		}
	}
	return set
}

// isComment reports whether a node kind is a comment in any registered
// grammar (comment, line_comment, block_comment, ...).
func isComment(kind string) bool {
	return strings.HasSuffix(kind, "comment")
}
