// Package pipeline runs the stages that turn a token source into trained,
// persisted and indexed embeddings.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/corpus"
	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/logging"
	"github.com/dusk-indust/ast2vec/internal/metrics"
	"github.com/dusk-indust/ast2vec/internal/resources"
	"github.com/dusk-indust/ast2vec/internal/skipgram"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

// Options configures a run. Source is required; everything else is
// optional.
type Options struct {
	Source   tokensource.Source
	Training config.Training
	Index    config.Index

	// Output is the artifact path. Empty skips the store stage.
	Output string

	// Store receives the similarity graph. Nil skips the index stage.
	Store index.Store

	Metrics *metrics.Training
	Logger  logrus.FieldLogger

	// RunID labels the artifact and log lines. Empty gets a fresh UUID.
	RunID string
}

// Result collects what every completed stage produced.
type Result struct {
	RunID        string
	Vocabulary   *vocab.Vocabulary
	Corpus       *corpus.Corpus
	Model        *skipgram.Model
	Embeddings   *embedding.Embeddings
	ArtifactPath string
	Clusters     []index.ClusterNode
	Skipped      []tokensource.Skip
	Diagnostics  []corpus.Diagnostic
}

// Pipeline executes the stages in order and reports progress.
type Pipeline struct {
	opts     Options
	progress *ProgressReporter
	log      logrus.FieldLogger
}

// New creates a Pipeline. Configuration problems surface from Run.
func New(opts Options) *Pipeline {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{
		opts:     opts,
		progress: NewProgressReporter(),
		log:      log.WithField("run_id", opts.RunID),
	}
}

// RunID returns the identifier of this run.
func (p *Pipeline) RunID() string { return p.opts.RunID }

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// DroppedEvents returns how many progress events were discarded because the
// subscriber fell behind.
func (p *Pipeline) DroppedEvents() int64 { return p.progress.Dropped() }

// Close shuts down the progress reporter.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// Run executes every stage. On failure the returned Result holds the output
// of the stages that completed; a cancelled training run still carries its
// partially trained model.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.opts.Training
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p.opts.Source == nil {
		return nil, fmt.Errorf("pipeline: no token source")
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = resources.DefaultWorkers()
		cfg.Workers = workers
	}

	res := &Result{RunID: p.opts.RunID}
	var files []tokensource.File

	err := p.runStage(ctx, StageTokenize, func(ctx context.Context) (string, error) {
		batch, err := p.opts.Source.Read(ctx)
		if err != nil {
			return "", err
		}
		files, res.Skipped = batch.Files, batch.Skipped
		for _, s := range batch.Skipped {
			p.log.WithFields(logrus.Fields{"file": s.Path, "reason": s.Reason}).Debug("file skipped")
		}
		return fmt.Sprintf("%d files, %d tokens, %d skipped",
			len(files), tokensource.TokenCount(files), len(batch.Skipped)), nil
	})
	if err != nil {
		return res, err
	}

	err = p.runStage(ctx, StageVocabulary, func(ctx context.Context) (string, error) {
		v, err := vocab.BuildParallel(ctx, files, workers, vocab.OptionsFrom(cfg))
		if err != nil {
			return "", err
		}
		res.Vocabulary = v
		if p.opts.Metrics != nil {
			p.opts.Metrics.SetVocabularySize(v.Len())
		}
		need := resources.MatrixBytes(v.Len(), cfg.Dimension)
		if ok, avail := resources.Headroom(need); !ok {
			p.log.WithFields(logrus.Fields{
				"need":      resources.FormatBytes(need),
				"available": resources.FormatBytes(avail),
			}).Warn("embedding matrices may not fit in available memory")
		}
		return fmt.Sprintf("%d tokens", v.Len()), nil
	})
	if err != nil {
		return res, err
	}

	err = p.runStage(ctx, StageEncode, func(context.Context) (string, error) {
		c, err := corpus.Encode(res.Vocabulary, files)
		if err != nil {
			return "", err
		}
		res.Corpus, res.Diagnostics = c, c.Diagnostics
		for _, d := range c.Diagnostics {
			p.log.WithFields(logrus.Fields{"file": d.File, "reason": d.Reason}).Debug("file contributes no pairs")
		}
		return fmt.Sprintf("%d documents, %d ids", len(c.Documents), c.TotalTokens()), nil
	})
	if err != nil {
		return res, err
	}

	err = p.runStage(ctx, StageTrain, func(ctx context.Context) (string, error) {
		opts := []skipgram.Option{
			skipgram.WithLogger(p.log.WithField("stage", StageTrain.String())),
			skipgram.WithEpochHook(func(s skipgram.EpochStats) {
				p.progress.Emit(ProgressEvent{
					Stage:   StageTrain,
					Section: StageTrain.String(),
					Status:  ProgressWorking,
					Epoch: &EpochProgress{
						Epoch:        s.Epoch,
						Epochs:       cfg.Epochs,
						Pairs:        s.Pairs,
						Loss:         s.Loss,
						LearningRate: s.LearningRate,
						Processed:    s.Processed,
						Total:        res.Corpus.TotalTokens() * int64(cfg.Epochs),
					},
				})
			}),
		}
		if p.opts.Metrics != nil {
			opts = append(opts, skipgram.WithEpochHook(p.opts.Metrics.ObserveEpoch))
		}
		tr, err := skipgram.NewTrainer(cfg, res.Vocabulary, opts...)
		if err != nil {
			return "", err
		}
		m, err := tr.Train(ctx, res.Corpus)
		res.Model = m
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d epochs", m.Epochs()), nil
	})
	if err != nil {
		return res, err
	}

	err = p.runStage(ctx, StageStore, func(context.Context) (string, error) {
		e, err := embedding.FromModel(res.Vocabulary, res.Model, p.opts.RunID)
		if err != nil {
			return "", err
		}
		res.Embeddings = e
		if p.opts.Output == "" {
			return "in memory only", nil
		}
		if err := e.Save(p.opts.Output); err != nil {
			return "", err
		}
		res.ArtifactPath = p.opts.Output
		return p.opts.Output, nil
	})
	if err != nil {
		return res, err
	}

	if p.opts.Store == nil {
		return res, nil
	}
	err = p.runStage(ctx, StageIndex, func(ctx context.Context) (string, error) {
		if err := p.opts.Store.InitSchema(ctx); err != nil {
			return "", err
		}
		k := p.opts.Index.Neighbors
		if k <= 0 {
			k = config.Default().Index.Neighbors
		}
		tokens, err := index.BuildNeighborGraph(ctx, p.opts.Store, res.Embeddings, k, p.opts.Index.MinSimilarity)
		if err != nil {
			return "", err
		}
		clusters, err := index.ComputeClusters(ctx, p.opts.Store, tokens)
		if err != nil {
			return "", err
		}
		res.Clusters = clusters
		return fmt.Sprintf("%d clusters", len(clusters)), nil
	})
	return res, err
}

// runStage brackets fn with progress events and log lines.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, fn func(context.Context) (string, error)) error {
	log := p.log.WithField("stage", stage.String())
	p.progress.Emit(ProgressEvent{
		Stage:   stage,
		Section: FormatStageHeader(p.opts.RunID, stage),
		Status:  ProgressWorking,
	})

	summary, err := fn(ctx)
	if err != nil {
		p.progress.Emit(ProgressEvent{
			Stage:   stage,
			Section: stage.String(),
			Status:  ProgressFailed,
			Message: err.Error(),
		})
		log.WithError(err).Error("stage failed")
		return fmt.Errorf("pipeline: %s: %w", stage, err)
	}

	p.progress.Emit(ProgressEvent{
		Stage:   stage,
		Section: stage.String(),
		Status:  ProgressComplete,
		Message: summary,
	})
	log.Info(summary)
	return nil
}
