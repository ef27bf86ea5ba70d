package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoGroups builds six 2-d rows: a-c near (1, 0), d-f near (0, 1).
func twoGroups(t *testing.T) *Embeddings {
	t.Helper()
	return handmade(t, map[string][]float32{
		"a": {1, 0}, "b": {0.9, 0.1}, "c": {1.1, -0.1},
		"d": {0, 1}, "e": {0.1, 0.9}, "f": {-0.1, 1.1},
	}, "a", "b", "c", "d", "e", "f")
}

func TestKMeans_SeparatesGroups(t *testing.T) {
	e := twoGroups(t)
	ids := []int{0, 1, 2, 3, 4, 5}

	res, err := e.KMeans(context.Background(), ids, KMeansOptions{K: 2, Seed: 7})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, ids, res.IDs)
	require.Len(t, res.Labels, 6)
	assert.Equal(t, res.Labels[0], res.Labels[1])
	assert.Equal(t, res.Labels[0], res.Labels[2])
	assert.Equal(t, res.Labels[3], res.Labels[4])
	assert.Equal(t, res.Labels[3], res.Labels[5])
	assert.NotEqual(t, res.Labels[0], res.Labels[3])
	assert.Equal(t, []int{3, 3}, res.Sizes)

	c := res.Centroids[res.Labels[0]]
	assert.InDelta(t, 1.0, c[0], 1e-5)
	assert.InDelta(t, 0.0, c[1], 1e-5)

	// Each point sits 0.1*sqrt(2) from its centroid except a and d.
	assert.InDelta(t, 4*0.02, res.Inertia, 1e-5)
}

func TestKMeans_DeterministicForSeed(t *testing.T) {
	e := twoGroups(t)
	ids := []int{0, 1, 2, 3, 4, 5}
	a, err := e.KMeans(context.Background(), ids, KMeansOptions{K: 3, Seed: 11})
	require.NoError(t, err)
	b, err := e.KMeans(context.Background(), ids, KMeansOptions{K: 3, Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKMeans_SubsetOfIDs(t *testing.T) {
	e := twoGroups(t)
	res, err := e.KMeans(context.Background(), []int{3, 4, 5}, KMeansOptions{K: 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, res.Labels)
	assert.InDelta(t, 0.0, res.Centroids[0][0], 1e-5)
	assert.InDelta(t, 1.0, res.Centroids[0][1], 1e-5)
}

func TestKMeans_DuplicatePoints(t *testing.T) {
	e := handmade(t, map[string][]float32{"a": {1, 1}, "b": {1, 1}, "c": {1, 1}}, "a", "b", "c")
	res, err := e.KMeans(context.Background(), []int{0, 1, 2}, KMeansOptions{K: 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Inertia)
	assert.Equal(t, 3, res.Sizes[0]+res.Sizes[1])
}

func TestKMeans_Errors(t *testing.T) {
	e := twoGroups(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ids  []int
		opts KMeansOptions
		msg  string
	}{
		{"no ids", nil, KMeansOptions{K: 1}, "no ids"},
		{"negative k", []int{0, 1}, KMeansOptions{K: -1}, "k must be positive"},
		{"k above points", []int{0, 1}, KMeansOptions{K: 3}, "exceeds"},
		{"default k above points", []int{0, 1}, KMeansOptions{}, "k=6"},
		{"id out of range", []int{0, 9}, KMeansOptions{K: 1}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.KMeans(ctx, tt.ids, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestKMeans_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := twoGroups(t).KMeans(ctx, []int{0, 1, 2}, KMeansOptions{K: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestElbow(t *testing.T) {
	e := twoGroups(t)
	ids := e.Sanitize(2)
	require.Len(t, ids, 6)

	scores, err := e.Elbow(context.Background(), ids, 5, KMeansOptions{Seed: 3})
	require.NoError(t, err)
	require.Len(t, scores, 4, "k = 1..4")
	assert.Greater(t, scores[0], scores[1], "splitting the two groups removes most inertia")
	assert.Greater(t, scores[0], 10*scores[1])

	scores, err = e.Elbow(context.Background(), []int{0, 1}, 10, KMeansOptions{})
	require.NoError(t, err)
	assert.Len(t, scores, 2, "k never exceeds the number of points")
}
