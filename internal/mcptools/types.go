package mcptools

import (
	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// TokenInfoInput is the input for the token_info MCP tool.
type TokenInfoInput struct {
	Token string `json:"token" jsonschema:"the exact token string, e.g. if_statement or identifier"`
}

// TokenInfoOutput is the result of the token_info MCP tool.
type TokenInfoOutput struct {
	Token               string  `json:"token"`
	ID                  int     `json:"id"`
	Count               int64   `json:"count"`
	Unknown             bool    `json:"unknown,omitempty"`
	KeepProbability     float64 `json:"keepProbability"`
	NegativeProbability float64 `json:"negativeProbability"`
	Norm                float64 `json:"norm"`
}

// NearestTokensInput is the input for the nearest_tokens MCP tool.
type NearestTokensInput struct {
	Token  string    `json:"token,omitempty" jsonschema:"token whose neighbors to return"`
	Vector []float32 `json:"vector,omitempty" jsonschema:"query vector, used when token is empty"`
	K      int       `json:"k,omitempty" jsonschema:"number of neighbors (default: 10)"`
}

// NearestTokensOutput is the result of the nearest_tokens MCP tool.
type NearestTokensOutput struct {
	Neighbors []embedding.Neighbor `json:"neighbors"`
}

// VocabularyStatsInput is the input for the vocabulary_stats MCP tool.
type VocabularyStatsInput struct {
	Top int `json:"top,omitempty" jsonschema:"number of most frequent tokens to list (default: 10)"`
}

// VocabularyStatsOutput is the result of the vocabulary_stats MCP tool.
type VocabularyStatsOutput struct {
	RunID        string       `json:"runId"`
	CreatedAt    string       `json:"createdAt"`
	VocabSize    int          `json:"vocabSize"`
	Dimension    int          `json:"dimension"`
	TotalTokens  int64        `json:"totalTokens"`
	Policy       string       `json:"policy"`
	UnknownToken string       `json:"unknownToken,omitempty"`
	MinCount     int          `json:"minCount"`
	Top          []TokenCount `json:"top"`
	Graph        *index.Stats `json:"graph,omitempty"`
}

// TokenCount pairs a token with its corpus frequency.
type TokenCount struct {
	Token string `json:"token"`
	Count int64  `json:"count"`
}

// GetClustersInput is the input for the get_clusters MCP tool.
type GetClustersInput struct{}

// GetClustersOutput is the result of the get_clusters MCP tool.
type GetClustersOutput struct {
	Clusters []index.ClusterNode `json:"clusters"`
}

// TrainEmbeddingsInput is the input for the train_embeddings MCP tool.
type TrainEmbeddingsInput struct {
	Path        string   `json:"path" jsonschema:"absolute path to a source tree or a .jsonl token stream"`
	Languages   []string `json:"languages,omitempty" jsonschema:"languages to tokenize (default: all supported). Values: go, typescript, tsx, python, rust, java, javascript"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directory names to skip (e.g. vendor, node_modules)"`
	Dimension   int      `json:"dimension,omitempty" jsonschema:"embedding dimension (default from config)"`
	Epochs      int      `json:"epochs,omitempty" jsonschema:"training epochs (default from config)"`
	MinCount    int      `json:"minCount,omitempty" jsonschema:"minimum token frequency (default from config)"`
	Output      string   `json:"output,omitempty" jsonschema:"artifact path; empty keeps the embeddings in memory"`
}

// TrainEmbeddingsOutput is the result of the train_embeddings MCP tool.
type TrainEmbeddingsOutput struct {
	RunID        string             `json:"runId"`
	VocabSize    int                `json:"vocabSize"`
	Documents    int                `json:"documents"`
	Epochs       int                `json:"epochs"`
	ArtifactPath string             `json:"artifactPath,omitempty"`
	Clusters     int                `json:"clusters"`
	Skipped      []tokensource.Skip `json:"skipped,omitempty"`
}
