// Package mcptools exposes trained token embeddings as MCP tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewEmbeddingMCPServer creates an MCP server with all 5 embedding tools registered.
func NewEmbeddingMCPServer(svc *EmbeddingService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ast2vec",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "token_info",
		Description: "Look up a syntax token in the vocabulary. Returns its id, corpus frequency, subsampling keep probability, negative-sampling probability and vector norm.",
	}, svc.TokenInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nearest_tokens",
		Description: "Return the tokens whose embeddings are most similar (cosine) to a given token or query vector.",
	}, svc.NearestTokens)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vocabulary_stats",
		Description: "Summarize the loaded embeddings: vocabulary size, dimension, unknown-token policy, most frequent tokens and neighbor-graph counts.",
	}, svc.VocabularyStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_clusters",
		Description: "Return all token clusters discovered in the neighbor graph. Clusters are groups of mutually similar tokens with cohesion scores.",
	}, svc.GetClusters)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "train_embeddings",
		Description: "Tokenize a repository (or read a .jsonl token stream), build the vocabulary, train skip-gram embeddings and make them the current embeddings.",
	}, svc.TrainEmbeddings)

	return server
}

// RunMCPServer starts an HTTP server exposing the embedding MCP tools.
func RunMCPServer(ctx context.Context, svc *EmbeddingService, addr string) error {
	server := NewEmbeddingMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, svc *EmbeddingService) error {
	return NewEmbeddingMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
}
