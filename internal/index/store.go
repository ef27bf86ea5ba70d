// Package index stores a token similarity graph: tokens, NEAR edges to
// their nearest cosine neighbors, and the clusters those edges form.
package index

import (
	"context"
	"io"
)

// Store is the interface for the similarity graph backend.
// Implementations: KuzuStore (cgo), MemStore.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddToken(ctx context.Context, node TokenNode) error
	AddNeighbor(ctx context.Context, edge NeighborEdge) error
	AddCluster(ctx context.Context, node ClusterNode) error

	// Read operations. GetToken returns nil, nil when the token is absent.
	GetToken(ctx context.Context, token string) (*TokenNode, error)
	QueryTokens(ctx context.Context, query string, limit int) ([]TokenNode, error)
	Neighbors(ctx context.Context, token string, limit int) ([]NeighborEdge, error)
	GetAllNeighbors(ctx context.Context) ([]NeighborEdge, error)
	GetClusters(ctx context.Context) ([]ClusterNode, error)

	// Stats.
	Stats(ctx context.Context) (*Stats, error)
}
