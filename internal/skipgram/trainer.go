// Package skipgram trains token embeddings with skip-gram and negative
// sampling.
//
// With one worker a run is exactly reproducible for a given seed. With more
// workers the documents are split round-robin and every worker updates the
// shared matrices without locking; updates may be lost or stale, so the
// result only converges in expectation.
package skipgram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/corpus"
	"github.com/dusk-indust/ast2vec/internal/logging"
	"github.com/dusk-indust/ast2vec/internal/resources"
	"github.com/dusk-indust/ast2vec/internal/vocab"
)

// maxNegativeDraws bounds rejection sampling per negative. When every draw
// collides the negative is skipped.
const maxNegativeDraws = 32

// lossEpsilon keeps the logistic loss finite.
const lossEpsilon = 1e-7

// EpochStats summarizes one completed epoch.
type EpochStats struct {
	Epoch        int
	Pairs        int64
	Loss         float64 // mean logistic loss per positive pair
	LearningRate float64 // rate at the end of the epoch
	Processed    int64   // tokens processed across all epochs so far
	Elapsed      time.Duration
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithEpochHook registers fn to be called after every epoch.
func WithEpochHook(fn func(EpochStats)) Option {
	return func(t *Trainer) { t.hooks = append(t.hooks, fn) }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Trainer) { t.log = l }
}

// Trainer owns a Model and the configuration it is trained with.
type Trainer struct {
	cfg     config.Training
	vocab   *vocab.Vocabulary
	model   *Model
	workers int
	rngs    []*rand.Rand

	hooks []func(EpochStats)
	log   logrus.FieldLogger

	processed atomic.Int64
	total     int64 // E * T, fixed at the start of Train
}

// NewTrainer validates cfg and allocates the model matrices for v.
// Configuration errors are returned before anything is allocated.
func NewTrainer(cfg config.Training, v *vocab.Vocabulary, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if v == nil || v.Len() == 0 {
		return nil, errors.New("skipgram: empty vocabulary")
	}

	t := &Trainer{cfg: cfg, vocab: v, log: logging.Discard()}
	for _, o := range opts {
		o(t)
	}

	t.workers = cfg.Workers
	if t.workers == 0 {
		t.workers = resources.DefaultWorkers()
	}
	seed := uint64(cfg.Seed)
	t.rngs = make([]*rand.Rand, t.workers)
	for w := range t.rngs {
		t.rngs[w] = rand.New(rand.NewPCG(seed, uint64(w)+1))
	}

	// The initializer has its own stream so the training draws do not
	// depend on the vocabulary size.
	t.model = newModel(v.Len(), cfg.Dimension, rand.New(rand.NewPCG(seed, 0)))
	return t, nil
}

// Model returns the model being trained.
func (t *Trainer) Model() *Model { return t.model }

// Workers returns the resolved worker count.
func (t *Trainer) Workers() int { return t.workers }

// Train runs every configured epoch over c. The context is checked between
// epochs only; on cancellation the model holds the completed epochs and the
// returned error wraps ctx.Err().
func (t *Trainer) Train(ctx context.Context, c *corpus.Corpus) (*Model, error) {
	m := t.model
	if m.state != Uninitialized {
		return m, fmt.Errorf("skipgram: model is already %s", m.state)
	}
	if c.Vocabulary() != nil && c.Vocabulary() != t.vocab {
		return m, errors.New("skipgram: corpus was encoded with a different vocabulary")
	}

	tokens := c.TotalTokens()
	t.total = int64(t.cfg.Epochs) * tokens
	workers := max(1, min(t.workers, len(c.Documents)))
	shards := make([]*corpus.Corpus, workers)
	if workers == 1 {
		shards[0] = c
	} else {
		for w := range shards {
			shards[w] = c.Shard(w, workers)
		}
	}

	log := t.log.WithFields(logrus.Fields{
		"vocab":     t.vocab.Len(),
		"dimension": t.cfg.Dimension,
		"documents": len(c.Documents),
		"tokens":    tokens,
		"workers":   workers,
	})
	log.Info("training started")
	m.state = Training

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			log.WithField("epochs", m.epochs).Warn("training cancelled")
			return m, fmt.Errorf("training cancelled after %d of %d epochs: %w", m.epochs, t.cfg.Epochs, err)
		}

		start := time.Now()
		var sum epochSum
		if workers == 1 {
			sum = t.runShard(shards[0], t.rngs[0])
		} else {
			parts := make([]epochSum, workers)
			var g errgroup.Group
			for w := range shards {
				g.Go(func() error {
					parts[w] = t.runShard(shards[w], t.rngs[w])
					return nil
				})
			}
			_ = g.Wait()
			for _, p := range parts {
				sum.pairs += p.pairs
				sum.loss += p.loss
			}
		}

		// Consumed counts can fall short when trailing documents are
		// subsampled away; realign to the exact epoch boundary.
		t.processed.Store(int64(epoch) * tokens)
		m.epochs = epoch

		stats := EpochStats{
			Epoch:        epoch,
			Pairs:        sum.pairs,
			LearningRate: t.learningRate(),
			Processed:    t.processed.Load(),
			Elapsed:      time.Since(start),
		}
		if sum.pairs > 0 {
			stats.Loss = sum.loss / float64(sum.pairs)
		}
		log.WithFields(logrus.Fields{
			"epoch": epoch,
			"pairs": stats.Pairs,
			"loss":  stats.Loss,
			"lr":    stats.LearningRate,
		}).Debug("epoch complete")
		for _, h := range t.hooks {
			h(stats)
		}
	}

	m.state = Trained
	log.WithField("epochs", m.epochs).Info("training finished")
	return m, nil
}

type epochSum struct {
	pairs int64
	loss  float64
}

// learningRate is lr0 * max(floor, 1 - processed/total).
func (t *Trainer) learningRate() float64 {
	frac := 1.0
	if t.total > 0 {
		frac = 1 - float64(t.processed.Load())/float64(t.total)
	}
	return t.cfg.LearningRate * math.Max(t.cfg.MinLearningRateRatio, frac)
}

// runShard trains one epoch over the documents of c.
func (t *Trainer) runShard(c *corpus.Corpus, rng *rand.Rand) epochSum {
	var sum epochSum
	grad := make([]float32, t.cfg.Dimension)
	opts := corpus.WindowOptions{
		Window:    t.cfg.Window,
		Dynamic:   t.cfg.DynamicWindow,
		Subsample: t.cfg.SubsampleThreshold > 0,
	}
	for w := range c.Windows(rng, opts) {
		lr := float32(t.learningRate())
		for _, ctxID := range w.Contexts {
			sum.loss += t.trainPair(rng, int(w.Center), int(ctxID), lr, grad)
			sum.pairs++
		}
		t.processed.Add(int64(w.Consumed))
	}
	return sum
}

// trainPair applies one positive pair and its negatives. The center row is
// updated once with the accumulated gradient; each context row is updated
// as soon as its gradient is known.
func (t *Trainer) trainPair(rng *rand.Rand, center, target int, lr float32, grad []float32) float64 {
	clear(grad)
	in := vec(t.model.CenterRow(center))
	acc := vec(grad)

	loss := t.update(in, target, 1, lr, acc)
	for k := 0; k < t.cfg.NegativeSamples; k++ {
		neg, ok := t.sampleNegative(rng, center, target)
		if !ok {
			continue
		}
		loss += t.update(in, neg, 0, lr, acc)
	}
	blas32.Axpy(1, acc, in)
	return loss
}

// update computes the logistic gradient for (in, out) against label and
// returns the pair's loss.
func (t *Trainer) update(in blas32.Vector, out int, label, lr float32, acc blas32.Vector) float64 {
	o := vec(t.model.ContextRow(out))
	p := sigmoid(float64(blas32.Dot(in, o)))
	g := (label - float32(p)) * lr

	blas32.Axpy(g, o, acc)
	blas32.Axpy(g, in, o)

	if label == 1 {
		return -math.Log(math.Max(p, lossEpsilon))
	}
	return -math.Log(math.Max(1-p, lossEpsilon))
}

// sampleNegative draws from the vocabulary distribution, rejecting the true
// context target and, when configured, the center.
func (t *Trainer) sampleNegative(rng *rand.Rand, center, target int) (int, bool) {
	for range maxNegativeDraws {
		id := t.vocab.SampleNegative(rng)
		if id == target || (t.cfg.ExcludeCenter && id == center) {
			continue
		}
		return id, true
	}
	return 0, false
}

func vec(row []float32) blas32.Vector {
	return blas32.Vector{N: len(row), Inc: 1, Data: row}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
