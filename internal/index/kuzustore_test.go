//go:build cgo

package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a fresh in-memory KuzuStore with an initialized schema.
func newTestStore(t *testing.T) *KuzuStore {
	t.Helper()
	s, err := NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.InitSchema(context.Background()), "InitSchema should not fail")
	return s
}

func TestKuzuStore_InitSchemaIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InitSchema(context.Background()))
}

func TestKuzuStore_Contract(t *testing.T) {
	storeContract(t, newTestStore(t))
}

func TestKuzuStore_NeighborRequiresTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddToken(ctx, TokenNode{Token: "a", ID: 0, Count: 1}))

	// MATCH finds no target, so nothing is created.
	require.NoError(t, s.AddNeighbor(ctx, NeighborEdge{Source: "a", Target: "ghost", Similarity: 1, Rank: 1}))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NeighborCount)
}

func TestKuzuStore_FilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph", "tokens.kuzu")
	ctx := context.Background()

	s, err := NewKuzuFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.AddToken(ctx, TokenNode{Token: "if_statement", ID: 0, Count: 3, Norm: 1}))
	require.NoError(t, s.Close())

	reopened, err := NewKuzuFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetToken(ctx, "if_statement")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Count)
}

func TestKuzuStore_ClustersFromGraph(t *testing.T) {
	s := newTestStore(t)
	emb := groupedEmbeddings(t)
	ctx := context.Background()

	tokens, err := BuildNeighborGraph(ctx, s, emb, 2, 0.5)
	require.NoError(t, err)
	clusters, err := ComputeClusters(ctx, s, tokens)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	stored, err := s.GetClusters(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, clusters[0].Members, stored[0].Members, "member order is preserved")
}
