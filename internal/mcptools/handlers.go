package mcptools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/logging"
	"github.com/dusk-indust/ast2vec/internal/pipeline"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
)

const (
	defaultK   = 10
	defaultTop = 10
)

// ErrNoEmbeddings is returned by query tools before any embeddings are
// loaded or trained.
var ErrNoEmbeddings = errors.New("no embeddings loaded; call train_embeddings first")

// StoreFactory opens an empty index store for a new set of embeddings.
type StoreFactory func() (index.Store, error)

// EmbeddingService holds the current embeddings and their neighbor index
// used by MCP tool handlers. Training swaps both atomically.
type EmbeddingService struct {
	cfg      *config.ProjectConfig
	newStore StoreFactory
	log      logrus.FieldLogger

	mu    sync.RWMutex
	emb   *embedding.Embeddings
	store index.Store

	trainMu sync.Mutex
}

// NewEmbeddingService creates a service configured by cfg. A nil factory
// uses in-memory stores; a nil logger discards output.
func NewEmbeddingService(cfg *config.ProjectConfig, newStore StoreFactory, log logrus.FieldLogger) *EmbeddingService {
	if cfg == nil {
		cfg = config.Default()
	}
	if newStore == nil {
		newStore = func() (index.Store, error) { return index.NewMemStore(), nil }
	}
	if log == nil {
		log = logging.Discard()
	}
	return &EmbeddingService{cfg: cfg, newStore: newStore, log: log}
}

// Load indexes emb into a fresh store and makes it current.
func (s *EmbeddingService) Load(ctx context.Context, emb *embedding.Embeddings) error {
	store, err := s.newStore()
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return fmt.Errorf("init schema: %w", err)
	}
	tokens, err := index.BuildNeighborGraph(ctx, store, emb, s.neighbors(), s.cfg.Index.MinSimilarity)
	if err != nil {
		store.Close()
		return err
	}
	if _, err := index.ComputeClusters(ctx, store, tokens); err != nil {
		store.Close()
		return err
	}
	s.swap(emb, store)
	return nil
}

// Close releases the current index store.
func (s *EmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func (s *EmbeddingService) swap(emb *embedding.Embeddings, store index.Store) {
	s.mu.Lock()
	old := s.store
	s.emb, s.store = emb, store
	s.mu.Unlock()
	if old != nil {
		if err := old.Close(); err != nil {
			s.log.WithError(err).Warn("close previous index")
		}
	}
}

func (s *EmbeddingService) current() (*embedding.Embeddings, index.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.emb == nil {
		return nil, nil, ErrNoEmbeddings
	}
	return s.emb, s.store, nil
}

func (s *EmbeddingService) neighbors() int {
	if s.cfg.Index.Neighbors > 0 {
		return s.cfg.Index.Neighbors
	}
	return config.Default().Index.Neighbors
}

// TokenInfo returns the vocabulary entry of a token.
func (s *EmbeddingService) TokenInfo(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input TokenInfoInput,
) (*mcp.CallToolResult, TokenInfoOutput, error) {
	emb, _, err := s.current()
	if err != nil {
		return nil, TokenInfoOutput{}, err
	}
	id, ok := emb.Vocab.ID(input.Token)
	if !ok {
		return nil, TokenInfoOutput{}, fmt.Errorf("%w: %q", embedding.ErrTokenNotFound, input.Token)
	}
	unk, hasUnk := emb.Vocab.UnknownID()
	return nil, TokenInfoOutput{
		Token:               input.Token,
		ID:                  id,
		Count:               emb.Vocab.Count(id),
		Unknown:             hasUnk && unk == id,
		KeepProbability:     emb.Vocab.KeepProbability(id),
		NegativeProbability: emb.Vocab.NegativeProbability(id),
		Norm:                float64(emb.Norm(id)),
	}, nil
}

// NearestTokens returns the k most similar tokens to a token or a raw
// vector.
func (s *EmbeddingService) NearestTokens(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input NearestTokensInput,
) (*mcp.CallToolResult, NearestTokensOutput, error) {
	emb, _, err := s.current()
	if err != nil {
		return nil, NearestTokensOutput{}, err
	}
	k := input.K
	if k <= 0 {
		k = defaultK
	}

	var neighbors []embedding.Neighbor
	switch {
	case input.Token != "":
		neighbors, err = emb.Nearest(input.Token, k)
		if err != nil {
			return nil, NearestTokensOutput{}, err
		}
	case len(input.Vector) > 0:
		if len(input.Vector) != emb.Dimension {
			return nil, NearestTokensOutput{}, fmt.Errorf("vector has %d components, embeddings have %d", len(input.Vector), emb.Dimension)
		}
		neighbors = emb.NearestToVector(input.Vector, k)
	default:
		return nil, NearestTokensOutput{}, fmt.Errorf("token or vector is required")
	}
	if neighbors == nil {
		neighbors = []embedding.Neighbor{}
	}
	return nil, NearestTokensOutput{Neighbors: neighbors}, nil
}

// VocabularyStats summarizes the current embeddings.
func (s *EmbeddingService) VocabularyStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VocabularyStatsInput,
) (*mcp.CallToolResult, VocabularyStatsOutput, error) {
	emb, store, err := s.current()
	if err != nil {
		return nil, VocabularyStatsOutput{}, err
	}
	top := input.Top
	if top <= 0 {
		top = defaultTop
	}
	v := emb.Vocab
	opts := v.Options()

	out := VocabularyStatsOutput{
		RunID:       emb.RunID,
		CreatedAt:   emb.CreatedAt.UTC().Format(time.RFC3339),
		VocabSize:   v.Len(),
		Dimension:   emb.Dimension,
		TotalTokens: v.Total(),
		Policy:      string(v.Policy()),
		MinCount:    opts.MinCount,
		Top:         make([]TokenCount, 0, min(top, v.Len())),
	}
	if id, ok := v.UnknownID(); ok {
		out.UnknownToken = v.Token(id)
	}
	// Ids are in descending frequency order.
	for id := 0; id < v.Len() && len(out.Top) < top; id++ {
		out.Top = append(out.Top, TokenCount{Token: v.Token(id), Count: v.Count(id)})
	}
	if store != nil {
		stats, err := store.Stats(ctx)
		if err != nil {
			return nil, VocabularyStatsOutput{}, fmt.Errorf("index stats: %w", err)
		}
		out.Graph = stats
	}
	return nil, out, nil
}

// GetClusters returns all token clusters of the current index.
func (s *EmbeddingService) GetClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ GetClustersInput,
) (*mcp.CallToolResult, GetClustersOutput, error) {
	_, store, err := s.current()
	if err != nil {
		return nil, GetClustersOutput{}, err
	}
	if store == nil {
		return nil, GetClustersOutput{Clusters: []index.ClusterNode{}}, nil
	}
	clusters, err := store.GetClusters(ctx)
	if err != nil {
		return nil, GetClustersOutput{}, fmt.Errorf("get clusters: %w", err)
	}
	if clusters == nil {
		clusters = []index.ClusterNode{}
	}
	return nil, GetClustersOutput{Clusters: clusters}, nil
}

// TrainEmbeddings runs the full pipeline on a source tree or token stream
// and swaps in the result. Concurrent calls are serialized.
func (s *EmbeddingService) TrainEmbeddings(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TrainEmbeddingsInput,
) (*mcp.CallToolResult, TrainEmbeddingsOutput, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	srcCfg := s.cfg.Source
	srcCfg.Path = input.Path
	if len(input.Languages) > 0 {
		srcCfg.Languages = input.Languages
	}
	if len(input.ExcludeDirs) > 0 {
		srcCfg.ExcludeDirs = input.ExcludeDirs
	}

	training := s.cfg.Training
	if input.Dimension > 0 {
		training.Dimension = input.Dimension
	}
	if input.Epochs > 0 {
		training.Epochs = input.Epochs
	}
	if input.MinCount > 0 {
		training.MinCount = input.MinCount
	}

	src, err := tokensource.FromConfig(srcCfg, training.Workers)
	if err != nil {
		return nil, TrainEmbeddingsOutput{}, err
	}
	store, err := s.newStore()
	if err != nil {
		return nil, TrainEmbeddingsOutput{}, fmt.Errorf("open index: %w", err)
	}

	p := pipeline.New(pipeline.Options{
		Source:   src,
		Training: training,
		Index:    s.cfg.Index,
		Output:   input.Output,
		Store:    store,
		Logger:   s.log,
	})
	go func() {
		for ev := range p.Progress() {
			s.log.WithField("stage", ev.Stage.String()).Debug(pipeline.FormatProgress(ev))
		}
	}()
	res, err := p.Run(ctx)
	p.Close()
	if err != nil {
		store.Close()
		return nil, TrainEmbeddingsOutput{}, err
	}
	s.swap(res.Embeddings, store)

	return nil, TrainEmbeddingsOutput{
		RunID:        res.RunID,
		VocabSize:    res.Vocabulary.Len(),
		Documents:    len(res.Corpus.Documents),
		Epochs:       res.Model.Epochs(),
		ArtifactPath: res.ArtifactPath,
		Clusters:     len(res.Clusters),
		Skipped:      res.Skipped,
	}, nil
}
