package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTokens() []TokenNode {
	return []TokenNode{
		{Token: "identifier", ID: 0, Count: 90, Norm: 1.2},
		{Token: "call_expression", ID: 1, Count: 40, Norm: 0.9},
		{Token: "Identifier:x", ID: 2, Count: 12, Norm: 0.7},
		{Token: "return_statement", ID: 3, Count: 8, Norm: 0.5},
	}
}

// storeContract exercises the behavior every Store implementation shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for _, tok := range seedTokens() {
		require.NoError(t, s.AddToken(ctx, tok))
	}
	edges := []NeighborEdge{
		{Source: "identifier", Target: "Identifier:x", Similarity: 0.9, Rank: 1},
		{Source: "identifier", Target: "call_expression", Similarity: 0.6, Rank: 2},
		{Source: "Identifier:x", Target: "identifier", Similarity: 0.9, Rank: 1},
		{Source: "call_expression", Target: "return_statement", Similarity: 0.7, Rank: 1},
	}
	// Insert out of rank order to check sorting.
	for _, i := range []int{1, 0, 2, 3} {
		require.NoError(t, s.AddNeighbor(ctx, edges[i]))
	}

	got, err := s.GetToken(ctx, "call_expression")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seedTokens()[1], *got)

	missing, err := s.GetToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	matches, err := s.QueryTokens(ctx, "IDENT", 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "identifier", matches[0].Token)
	assert.Equal(t, "Identifier:x", matches[1].Token)

	limited, err := s.QueryTokens(ctx, "e", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, 0, limited[0].ID)

	near, err := s.Neighbors(ctx, "identifier", 0)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, "Identifier:x", near[0].Target)
	assert.Equal(t, 1, near[0].Rank)
	assert.InDelta(t, 0.9, near[0].Similarity, 1e-12)
	assert.Equal(t, "call_expression", near[1].Target)

	top, err := s.Neighbors(ctx, "identifier", 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	all, err := s.GetAllNeighbors(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "identifier", all[0].Source, "grouped by source id")

	cluster := ClusterNode{Name: "identifier", CohesionScore: 0.75, Members: []string{"identifier", "Identifier:x"}}
	require.NoError(t, s.AddCluster(ctx, cluster))
	clusters, err := s.GetClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, cluster.Name, clusters[0].Name)
	assert.InDelta(t, 0.75, clusters[0].CohesionScore, 1e-12)
	assert.Equal(t, cluster.Members, clusters[0].Members)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{TokenCount: 4, NeighborCount: 4, ClusterCount: 1}, stats)
}

func TestMemStore_Contract(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.InitSchema(context.Background()))
	storeContract(t, s)
	assert.NoError(t, s.Close())
}

func TestMemStore_EmptyStats(t *testing.T) {
	stats, err := NewMemStore().Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}
