package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/index"
	"github.com/dusk-indust/ast2vec/internal/logging"
	"github.com/dusk-indust/ast2vec/internal/metrics"
	"github.com/dusk-indust/ast2vec/internal/pipeline"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
)

// trainFlags holds train flags that are not training hyperparameters.
type trainFlags struct {
	ConfigPath    string
	Source        string
	Out           string
	IndexPath     string
	NoIndex       bool
	MetricsAddr   string
	LogLevel      string
	LogFormat     string
	Languages     string
	ExcludeDirs   string
	IncludeValues bool
	KeepComments  bool
	Policy        string
	Neighbors     int
	MinSimilarity float64
}

func runTrain(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags trainFlags
	t := config.DefaultTraining()

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&flags.ConfigPath, "config", "", "config file (default: ast2vec.yml in the working directory)")
	fs.StringVar(&flags.Source, "source", "", "source tree or .jsonl token stream")
	fs.StringVar(&flags.Out, "out", "", "embeddings artifact path")
	fs.StringVar(&flags.IndexPath, "index", "", "persist the neighbor graph to this kuzu database (cgo builds)")
	fs.BoolVar(&flags.NoIndex, "no-index", false, "skip the neighbor graph")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while training")
	fs.StringVar(&flags.LogLevel, "log-level", "", "trace, debug, info, warn or error")
	fs.StringVar(&flags.LogFormat, "log-format", "text", "text or json")
	fs.StringVar(&flags.Languages, "languages", "", "comma-separated languages to tokenize")
	fs.StringVar(&flags.ExcludeDirs, "exclude", "", "comma-separated directory names to skip")
	fs.BoolVar(&flags.IncludeValues, "include-values", false, "append literal and identifier text to leaf tokens")
	fs.BoolVar(&flags.KeepComments, "keep-comments", false, "keep comment nodes")
	fs.StringVar(&flags.Policy, "unknown-policy", string(t.UnknownPolicy), "drop, map or reject")
	fs.IntVar(&flags.Neighbors, "neighbors", 0, "neighbors per token in the index")
	fs.Float64Var(&flags.MinSimilarity, "min-similarity", 0, "minimum cosine similarity of an index edge")

	fs.IntVar(&t.Dimension, "dim", t.Dimension, "embedding dimension")
	fs.IntVar(&t.Window, "window", t.Window, "maximum context radius")
	fs.IntVar(&t.NegativeSamples, "negative", t.NegativeSamples, "negative samples per positive pair")
	fs.IntVar(&t.Epochs, "epochs", t.Epochs, "passes over the corpus")
	fs.Float64Var(&t.LearningRate, "lr", t.LearningRate, "initial learning rate")
	fs.Float64Var(&t.MinLearningRateRatio, "min-lr-ratio", t.MinLearningRateRatio, "learning rate floor as a fraction of -lr")
	fs.IntVar(&t.MinCount, "min-count", t.MinCount, "minimum token frequency")
	fs.Float64Var(&t.SubsampleThreshold, "subsample", t.SubsampleThreshold, "frequent-token subsampling threshold (0 disables)")
	fs.Int64Var(&t.Seed, "seed", t.Seed, "random seed")
	fs.IntVar(&t.Workers, "workers", t.Workers, "training workers (0 = one per CPU)")
	fs.BoolVar(&t.DynamicWindow, "dynamic-window", t.DynamicWindow, "sample the context radius per center")
	fs.BoolVar(&t.ExcludeCenter, "exclude-center", t.ExcludeCenter, "never draw the center token as a negative")
	fs.StringVar(&t.UnknownToken, "unknown-token", t.UnknownToken, "token string of the reserved unknown id")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if err := applyTrainFlags(fs, cfg, flags, t); err != nil {
		return err
	}
	if flags.IndexPath == "" {
		flags.IndexPath = cfg.Index.Path
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: flags.LogFormat, Output: stderr})
	if err != nil {
		return err
	}

	src, err := tokensource.FromConfig(cfg.Source, cfg.Training.Workers)
	if err != nil {
		return err
	}

	store, err := openTrainIndex(flags)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	m := metrics.NewTraining()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return err
	}
	if flags.MetricsAddr != "" {
		stopMetrics := serveMetrics(flags.MetricsAddr, reg, log)
		defer stopMetrics()
	}

	p := pipeline.New(pipeline.Options{
		Source:   src,
		Training: cfg.Training,
		Index:    cfg.Index,
		Output:   cfg.Output,
		Store:    store,
		Metrics:  m,
		Logger:   log,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range p.Progress() {
			fmt.Fprintln(stderr, pipeline.FormatProgress(ev))
		}
	}()

	start := time.Now()
	res, err := p.Run(ctx)
	p.Close()
	wg.Wait()
	if n := p.DroppedEvents(); n > 0 {
		log.WithField("dropped", n).Warn("progress output fell behind")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run %s: %d tokens, %d documents, %d epochs in %s\n",
		res.RunID, res.Vocabulary.Len(), len(res.Corpus.Documents), res.Model.Epochs(),
		time.Since(start).Round(time.Millisecond))
	if res.ArtifactPath != "" {
		fmt.Fprintf(stdout, "embeddings written to %s\n", res.ArtifactPath)
	}
	if store != nil {
		fmt.Fprintf(stdout, "%d clusters\n", len(res.Clusters))
	}
	if n := len(res.Skipped) + len(res.Diagnostics); n > 0 {
		fmt.Fprintf(stdout, "%d files contributed no pairs (run with -log-level debug for details)\n", n)
	}
	return nil
}

// applyTrainFlags overrides cfg with every flag given on the command line.
func applyTrainFlags(fs *flag.FlagSet, cfg *config.ProjectConfig, flags trainFlags, t config.Training) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		tc := &cfg.Training
		switch f.Name {
		case "source":
			cfg.Source.Path = flags.Source
		case "out":
			cfg.Output = flags.Out
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "languages":
			cfg.Source.Languages = splitList(flags.Languages)
		case "exclude":
			cfg.Source.ExcludeDirs = splitList(flags.ExcludeDirs)
		case "include-values":
			cfg.Source.IncludeValues = flags.IncludeValues
		case "keep-comments":
			cfg.Source.KeepComments = flags.KeepComments
		case "neighbors":
			cfg.Index.Neighbors = flags.Neighbors
		case "min-similarity":
			cfg.Index.MinSimilarity = flags.MinSimilarity
		case "unknown-policy":
			p, perr := config.ParseUnknownPolicy(flags.Policy)
			if perr != nil {
				err = perr
			}
			tc.UnknownPolicy = p
		case "dim":
			tc.Dimension = t.Dimension
		case "window":
			tc.Window = t.Window
		case "negative":
			tc.NegativeSamples = t.NegativeSamples
		case "epochs":
			tc.Epochs = t.Epochs
		case "lr":
			tc.LearningRate = t.LearningRate
		case "min-lr-ratio":
			tc.MinLearningRateRatio = t.MinLearningRateRatio
		case "min-count":
			tc.MinCount = t.MinCount
		case "subsample":
			tc.SubsampleThreshold = t.SubsampleThreshold
		case "seed":
			tc.Seed = t.Seed
		case "workers":
			tc.Workers = t.Workers
		case "dynamic-window":
			tc.DynamicWindow = t.DynamicWindow
		case "exclude-center":
			tc.ExcludeCenter = t.ExcludeCenter
		case "unknown-token":
			tc.UnknownToken = t.UnknownToken
		}
	})
	if err != nil {
		return err
	}
	return cfg.Training.Validate()
}

func openTrainIndex(flags trainFlags) (index.Store, error) {
	switch {
	case flags.IndexPath != "":
		if _, err := os.Stat(flags.IndexPath); err == nil {
			return nil, fmt.Errorf("index %s already exists; remove it or choose another path", flags.IndexPath)
		}
		return openIndex(flags.IndexPath)
	case flags.NoIndex:
		return nil, nil
	default:
		return index.NewMemStore(), nil
	}
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, log logrus.FieldLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func loadConfig(path string) (*config.ProjectConfig, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(".")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
