package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/corpus"
	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/metrics"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
)

func testTraining() config.Training {
	cfg := config.DefaultTraining()
	cfg.Dimension = 8
	cfg.Window = 2
	cfg.NegativeSamples = 3
	cfg.Epochs = 3
	cfg.MinCount = 1
	cfg.SubsampleThreshold = 0
	cfg.Workers = 1
	return cfg
}

func testFiles() tokensource.Static {
	files := make(tokensource.Static, 0, 7)
	for i := 0; i < 6; i++ {
		files = append(files, tokensource.File{
			Name:   fmt.Sprintf("f%d.go", i),
			Tokens: []string{"func", "identifier", "(", ")", "{", "return", "}"},
		})
	}
	files = append(files, tokensource.File{Name: "short.go", Tokens: []string{"func"}})
	return files
}

func drain(p *Pipeline) []ProgressEvent {
	p.Close()
	var events []ProgressEvent
	for ev := range p.Progress() {
		events = append(events, ev)
	}
	return events
}

func TestPipeline_Run_AllStages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "emb.json")
	m := metrics.NewTraining()
	store := index.NewMemStore()
	defer store.Close()

	p := New(Options{
		Source:   testFiles(),
		Training: testTraining(),
		Index:    config.Index{Neighbors: 3, MinSimilarity: -1},
		Output:   out,
		Store:    store,
		Metrics:  m,
		RunID:    "run-42",
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, 7, res.Vocabulary.Len())
	assert.Len(t, res.Corpus.Documents, 6)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "short.go", res.Diagnostics[0].File)
	assert.Equal(t, 3, res.Model.Epochs())
	assert.Equal(t, out, res.ArtifactPath)
	assert.NotEmpty(t, res.Clusters)

	loaded, err := embedding.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "run-42", loaded.RunID)
	assert.Equal(t, res.Embeddings.VectorByID(0), loaded.VectorByID(0))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TokenCount)
	assert.Equal(t, 7*3, stats.NeighborCount)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EpochsCompleted))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.VocabularySize))
	assert.Equal(t, float64(res.Corpus.TotalTokens()*3), testutil.ToFloat64(m.TokensProcessed))

	events := drain(p)
	completed := map[Stage]bool{}
	var epochs []EpochProgress
	for _, ev := range events {
		if ev.Status == ProgressComplete {
			completed[ev.Stage] = true
		}
		if ev.Epoch != nil {
			assert.Equal(t, StageTrain, ev.Stage)
			epochs = append(epochs, *ev.Epoch)
		}
	}
	for s := StageTokenize; s <= StageIndex; s++ {
		assert.True(t, completed[s], "stage %s should complete", s)
	}

	require.Len(t, epochs, 3)
	assert.Zero(t, p.DroppedEvents())
	total := res.Corpus.TotalTokens() * 3
	for i, e := range epochs {
		assert.Equal(t, i+1, e.Epoch)
		assert.Equal(t, 3, e.Epochs)
		assert.Equal(t, total, e.Total)
		assert.Positive(t, e.Pairs)
		assert.Equal(t, res.Corpus.TotalTokens()*int64(i+1), e.Processed)
	}
	assert.Equal(t, 1.0, epochs[2].Fraction())
	assert.Contains(t, FormatProgress(ProgressEvent{Section: "train", Status: ProgressWorking, Epoch: &epochs[2]}),
		"epoch 3/3 [####################] 100%")
}

func TestPipeline_Run_NoOutputNoStore(t *testing.T) {
	p := New(Options{Source: testFiles(), Training: testTraining()})
	defer p.Close()

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID, "a run id is generated")
	assert.Equal(t, res.RunID, res.Embeddings.RunID)
	assert.Empty(t, res.ArtifactPath)
	assert.Nil(t, res.Clusters)
}

func TestPipeline_Run_InvalidConfiguration(t *testing.T) {
	cfg := testTraining()
	cfg.Dimension = 0
	p := New(Options{Source: testFiles(), Training: cfg})
	defer p.Close()

	_, err := p.Run(context.Background())
	var ice *config.InvalidConfigurationError
	assert.True(t, errors.As(err, &ice))
}

func TestPipeline_Run_NoSource(t *testing.T) {
	p := New(Options{Training: testTraining()})
	defer p.Close()

	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "no token source")
}

func TestPipeline_Run_RejectPolicyDropsRareTokens(t *testing.T) {
	// Builder and encoder read the same batch, so every token was seen and
	// reject behaves like drop for tokens below MinCount.
	cfg := testTraining()
	cfg.MinCount = 2
	cfg.UnknownPolicy = config.UnknownReject
	files := append(testFiles(), tokensource.File{Name: "rare.go", Tokens: []string{"func", "goto", "return"}})

	p := New(Options{Source: files, Training: cfg})
	defer p.Close()

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	_, ok := res.Vocabulary.ID("goto")
	assert.False(t, ok)
}

func TestPipeline_Run_EmptyVocabulary(t *testing.T) {
	cfg := testTraining()
	cfg.MinCount = 100
	p := New(Options{Source: testFiles(), Training: cfg})

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: vocabulary:")
	assert.Nil(t, res.Vocabulary)

	var failed bool
	for _, ev := range drain(p) {
		if ev.Stage == StageVocabulary && ev.Status == ProgressFailed {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "emb.json")
	p := New(Options{Source: testFiles(), Training: testTraining(), Output: out})
	defer p.Close()

	res, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	require.NotNil(t, res.Model, "the partially trained model is returned")
	assert.Equal(t, 0, res.Model.Epochs())
	_, statErr := os.Stat(out)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no artifact after cancellation")
}

type failingSource struct{}

func (failingSource) Read(context.Context) (*tokensource.Batch, error) {
	return nil, errors.New("disk on fire")
}

func TestPipeline_Run_SourceError(t *testing.T) {
	p := New(Options{Source: failingSource{}, Training: testTraining()})
	defer p.Close()

	_, err := p.Run(context.Background())
	assert.EqualError(t, err, "pipeline: tokenize: disk on fire")
}

func TestPipeline_Run_EncodeDiagnosticsOnly(t *testing.T) {
	p := New(Options{Source: tokensource.Static{
		{Name: "a.go", Tokens: []string{"x", "y"}},
		{Name: "b.go", Tokens: []string{"x"}},
	}, Training: testTraining()})
	defer p.Close()

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []corpus.Diagnostic{{File: "b.go", Reason: "1 of 1 tokens encoded, need at least 2"}}, res.Diagnostics)
}
