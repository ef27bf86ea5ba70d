package export

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

func groupedEmbeddings(t *testing.T) *embedding.Embeddings {
	t.Helper()
	entries := []vocab.Entry{
		{Token: "if", ID: 0, Count: 50},
		{Token: "string", ID: 1, Count: 40},
		{Token: "for", ID: 2, Count: 30},
		{Token: "number", ID: 3, Count: 20},
		{Token: "while", ID: 4, Count: 10},
	}
	v, err := vocab.FromEntries(entries, vocab.Options{})
	require.NoError(t, err)
	e, err := embedding.New("run-1", v, 3, []float32{
		1, 0.1, 0,
		0, 0, 1,
		1, 0, 0.1,
		0, 0.1, 1,
		0.9, 0.1, 0.1,
	})
	require.NoError(t, err)
	return e
}

func indexed(t *testing.T, e *embedding.Embeddings) *index.MemStore {
	t.Helper()
	ctx := context.Background()
	store := index.NewMemStore()
	tokens, err := index.BuildNeighborGraph(ctx, store, e, 2, 0.5)
	require.NoError(t, err)
	_, err = index.ComputeClusters(ctx, store, tokens)
	require.NoError(t, err)
	return store
}

func TestWriteVectorsTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVectorsTSV(&buf, groupedEmbeddings(t)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "1\t0.1\t0", lines[0])
	assert.Equal(t, "0.9\t0.1\t0.1", lines[4])
}

func TestWriteMetadataTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetadataTSV(&buf, groupedEmbeddings(t)))

	assert.Equal(t, "Name\tCount\nif\t50\nstring\t40\nfor\t30\nnumber\t20\nwhile\t10\n", buf.String())
}

func TestWriteMetadataTSV_EscapesLiterals(t *testing.T) {
	v, err := vocab.FromEntries([]vocab.Entry{
		{Token: "a\tb", ID: 0, Count: 2},
		{Token: "line\nbreak", ID: 1, Count: 1},
	}, vocab.Options{})
	require.NoError(t, err)
	e, err := embedding.New("run", v, 1, []float32{1, 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMetadataTSV(&buf, e))
	assert.Equal(t, "Name\tCount\na\\tb\t2\nline\\nbreak\t1\n", buf.String())
}

func TestWriteClustersTSV(t *testing.T) {
	e := groupedEmbeddings(t)
	res, err := e.KMeans(context.Background(), []int{0, 1, 2, 3, 4}, embedding.KMeansOptions{K: 2, Seed: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteClustersTSV(&buf, e, res))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Name\tCount\tCluster", lines[0])

	cluster := map[string]string{}
	for _, line := range lines[1:] {
		cols := strings.Split(line, "\t")
		require.Len(t, cols, 3)
		cluster[cols[0]] = cols[2]
	}
	assert.Equal(t, cluster["if"], cluster["for"])
	assert.Equal(t, cluster["if"], cluster["while"])
	assert.Equal(t, cluster["string"], cluster["number"])
	assert.NotEqual(t, cluster["if"], cluster["string"])
	assert.True(t, strings.HasPrefix(lines[1], "if\t50\t"))
}

func TestWriteClustersTSV_LabelMismatch(t *testing.T) {
	e := groupedEmbeddings(t)
	err := WriteClustersTSV(&bytes.Buffer{}, e, &embedding.KMeansResult{IDs: []int{0, 1}, Labels: []int{0}})
	assert.ErrorContains(t, err, "2 ids but 1 labels")
}

func TestExportSummary(t *testing.T) {
	e := groupedEmbeddings(t)
	store := indexed(t, e)

	s, err := ExportSummary(context.Background(), e, store, 1)
	require.NoError(t, err)

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 5, s.VocabSize)
	assert.Equal(t, 3, s.Dimension)
	require.Len(t, s.Tokens, 5)
	assert.Equal(t, TokenExport{Token: "string", ID: 1, Count: 40, Neighbors: []string{"number"}}, s.Tokens[1])

	require.Len(t, s.Clusters, 2)
	assert.Equal(t, "if", s.Clusters[0].Name)
	assert.Equal(t, []string{"if", "for", "while"}, s.Clusters[0].Members)
	assert.InDelta(t, 1.0, s.Clusters[0].CohesionScore, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, s))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Len(t, decoded["tokens"], 5)
}

func TestExportSummary_NoStore(t *testing.T) {
	s, err := ExportSummary(context.Background(), groupedEmbeddings(t), nil, 0)
	require.NoError(t, err)
	assert.Nil(t, s.Clusters)
	for _, tok := range s.Tokens {
		assert.Empty(t, tok.Neighbors)
	}
}

func TestExportSummary_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExportSummary(ctx, groupedEmbeddings(t), nil, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateMermaid(t *testing.T) {
	store := indexed(t, groupedEmbeddings(t))

	out, err := GenerateMermaid(context.Background(), store)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
	assert.Contains(t, out, `subgraph N0["if (1.00)"]`)
	assert.Contains(t, out, `N1["if"]`)
	assert.Contains(t, out, `subgraph N4["string (1.00)"]`)
	assert.Equal(t, 2, strings.Count(out, "  end\n"))
	assert.Equal(t, 5, strings.Count(out, "-->|"), "one rank-1 arrow per token")
	assert.Regexp(t, regexp.MustCompile(`N5 -->\|[0-9.]+\| N6`), out)
}

func TestGenerateMermaid_UnclusteredTokensDeclared(t *testing.T) {
	ctx := context.Background()
	store := index.NewMemStore()
	require.NoError(t, store.AddToken(ctx, index.TokenNode{Token: `say "hi"`, ID: 0}))
	require.NoError(t, store.AddToken(ctx, index.TokenNode{Token: "b", ID: 1}))
	require.NoError(t, store.AddNeighbor(ctx, index.NeighborEdge{Source: `say "hi"`, Target: "b", Similarity: 0.7, Rank: 1}))

	out, err := GenerateMermaid(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "graph LR\n  N0[\"say #quot;hi#quot;\"]\n  N1[\"b\"]\n  N0 -->|0.70| N1\n", out)
}

func TestLabel_Truncates(t *testing.T) {
	long := strings.Repeat("x", 50)
	got := label(long)
	assert.Equal(t, 40, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
