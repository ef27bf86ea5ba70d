package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStore creates a MemStore holding the given tokens and edges.
func setupStore(t *testing.T, tokens []TokenNode, edges []NeighborEdge) *MemStore {
	t.Helper()
	ctx := context.Background()
	store := NewMemStore()
	require.NoError(t, store.InitSchema(ctx))
	for _, tok := range tokens {
		require.NoError(t, store.AddToken(ctx, tok))
	}
	for _, e := range edges {
		require.NoError(t, store.AddNeighbor(ctx, e))
	}
	return store
}

func near(src, dst string) NeighborEdge {
	return NeighborEdge{Source: src, Target: dst, Similarity: 0.9, Rank: 1}
}

func tokenNodes(names ...string) []TokenNode {
	out := make([]TokenNode, len(names))
	for i, n := range names {
		out[i] = TokenNode{Token: n, ID: i, Count: int64(100 - i)}
	}
	return out
}

func TestComputeClusters_NoEdges(t *testing.T) {
	tokens := tokenNodes("a", "b", "c")
	store := setupStore(t, tokens, nil)
	ctx := context.Background()

	clusters, err := ComputeClusters(ctx, store, tokens)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	stored, err := store.GetClusters(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestComputeClusters_OneWayEdgesDoNotCluster(t *testing.T) {
	tokens := tokenNodes("a", "b", "c")
	store := setupStore(t, tokens, []NeighborEdge{near("a", "b"), near("b", "c"), near("c", "a")})

	clusters, err := ComputeClusters(context.Background(), store, tokens)
	require.NoError(t, err)
	assert.Empty(t, clusters, "a cycle without mutual pairs forms no cluster")
}

func TestComputeClusters_MutualPair(t *testing.T) {
	tokens := tokenNodes("a", "b", "c")
	store := setupStore(t, tokens, []NeighborEdge{
		near("b", "a"), near("a", "b"), near("b", "c"),
	})

	clusters, err := ComputeClusters(context.Background(), store, tokens)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.Equal(t, "a", c.Name, "named after the most frequent member")
	assert.Equal(t, []string{"a", "b"}, c.Members)
	// a->b, b->a internal; b->c external.
	assert.InDelta(t, 2.0/3.0, c.CohesionScore, 1e-12)
}

func TestComputeClusters_TwoComponents(t *testing.T) {
	tokens := tokenNodes("a", "b", "c", "d", "e", "f")
	store := setupStore(t, tokens, []NeighborEdge{
		near("a", "c"), near("c", "a"),
		near("c", "e"), near("e", "c"),
		near("b", "d"), near("d", "b"),
		near("f", "a"),
	})
	ctx := context.Background()

	clusters, err := ComputeClusters(ctx, store, tokens)
	require.NoError(t, err)
	require.Len(t, clusters, 2)

	assert.Equal(t, "a", clusters[0].Name)
	assert.Equal(t, []string{"a", "c", "e"}, clusters[0].Members)
	assert.InDelta(t, 1.0, clusters[0].CohesionScore, 1e-12)
	assert.Equal(t, "b", clusters[1].Name)
	assert.Equal(t, []string{"b", "d"}, clusters[1].Members)

	stored, err := store.GetClusters(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestComputeClusters_IgnoresUnknownTokens(t *testing.T) {
	tokens := tokenNodes("a", "b")
	store := setupStore(t, tokens, []NeighborEdge{near("a", "x"), near("x", "a")})

	clusters, err := ComputeClusters(context.Background(), store, tokens)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}
