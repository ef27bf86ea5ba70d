// Package metrics exposes training progress as prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dusk-indust/ast2vec/internal/skipgram"
)

// Training holds the collectors updated during a run.
type Training struct {
	TokensProcessed prometheus.Counter
	EpochsCompleted prometheus.Counter
	EpochLoss       prometheus.Gauge
	LearningRate    prometheus.Gauge
	VocabularySize  prometheus.Gauge

	lastProcessed int64
}

// NewTraining creates unregistered collectors.
func NewTraining() *Training {
	return &Training{
		TokensProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ast2vec_tokens_processed_total",
			Help: "Corpus tokens consumed by the trainer across all epochs.",
		}),
		EpochsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ast2vec_epochs_completed_total",
			Help: "Training epochs completed.",
		}),
		EpochLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ast2vec_epoch_loss",
			Help: "Mean logistic loss per positive pair in the last epoch.",
		}),
		LearningRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ast2vec_learning_rate",
			Help: "Learning rate at the end of the last epoch.",
		}),
		VocabularySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ast2vec_vocabulary_size",
			Help: "Number of ids in the frozen vocabulary.",
		}),
	}
}

// Register adds every collector to reg.
func (t *Training) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		t.TokensProcessed, t.EpochsCompleted, t.EpochLoss, t.LearningRate, t.VocabularySize,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveEpoch is a skipgram epoch hook.
func (t *Training) ObserveEpoch(s skipgram.EpochStats) {
	if d := s.Processed - t.lastProcessed; d > 0 {
		t.TokensProcessed.Add(float64(d))
	}
	t.lastProcessed = s.Processed
	t.EpochsCompleted.Inc()
	t.EpochLoss.Set(s.Loss)
	t.LearningRate.Set(s.LearningRate)
}

// SetVocabularySize records the vocabulary size of the current run.
func (t *Training) SetVocabularySize(n int) {
	t.VocabularySize.Set(float64(n))
}
