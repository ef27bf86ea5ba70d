package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownPolicy selects what happens to tokens that are not part of the
// frozen vocabulary.
type UnknownPolicy string

const (
	// UnknownDrop removes rare and unseen tokens from encoded sequences.
	UnknownDrop UnknownPolicy = "drop"

	// UnknownMap maps rare and unseen tokens to a reserved vocabulary id.
	UnknownMap UnknownPolicy = "map"

	// UnknownReject drops tokens discarded for rarity but fails encoding on
	// tokens the vocabulary builder never saw.
	UnknownReject UnknownPolicy = "reject"
)

// DefaultUnknownToken is the token string of the reserved unknown id.
const DefaultUnknownToken = "<unk>"

// Training holds every hyperparameter of a vocabulary + skip-gram run.
// Values are fixed once training starts.
type Training struct {
	Dimension            int           `yaml:"dimension"`
	Window               int           `yaml:"window"`
	NegativeSamples      int           `yaml:"negativeSamples"`
	Epochs               int           `yaml:"epochs"`
	LearningRate         float64       `yaml:"learningRate"`
	MinLearningRateRatio float64       `yaml:"minLearningRateRatio"`
	MinCount             int           `yaml:"minCount"`
	SubsampleThreshold   float64       `yaml:"subsampleThreshold"`
	Seed                 int64         `yaml:"seed"`
	Workers              int           `yaml:"workers"`
	DynamicWindow        bool          `yaml:"dynamicWindow"`
	ExcludeCenter        bool          `yaml:"excludeCenter"`
	UnknownPolicy        UnknownPolicy `yaml:"unknownPolicy"`
	UnknownToken         string        `yaml:"unknownToken,omitempty"`
}

// DefaultTraining returns the hyperparameters used when nothing is configured.
func DefaultTraining() Training {
	return Training{
		Dimension:            100,
		Window:               5,
		NegativeSamples:      5,
		Epochs:               5,
		LearningRate:         0.025,
		MinLearningRateRatio: 1e-4,
		MinCount:             5,
		SubsampleThreshold:   1e-3,
		Seed:                 1,
		Workers:              1,
		DynamicWindow:        true,
		ExcludeCenter:        true,
		UnknownPolicy:        UnknownDrop,
		UnknownToken:         DefaultUnknownToken,
	}
}

// InvalidConfigurationError reports a hyperparameter outside its valid range.
type InvalidConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func invalid(field string, value any, reason string) error {
	return &InvalidConfigurationError{Field: field, Value: value, Reason: reason}
}

// Validate checks every field and returns the first violation as an
// *InvalidConfigurationError.
func (t Training) Validate() error {
	switch {
	case t.Dimension <= 0:
		return invalid("dimension", t.Dimension, "must be positive")
	case t.Window <= 0:
		return invalid("window", t.Window, "must be positive")
	case t.NegativeSamples <= 0:
		return invalid("negativeSamples", t.NegativeSamples, "must be positive")
	case t.Epochs <= 0:
		return invalid("epochs", t.Epochs, "must be positive")
	case math.IsNaN(t.LearningRate) || t.LearningRate <= 0 || t.LearningRate > 1:
		return invalid("learningRate", t.LearningRate, "must be in (0, 1]")
	case math.IsNaN(t.MinLearningRateRatio) || t.MinLearningRateRatio <= 0 || t.MinLearningRateRatio > 1:
		return invalid("minLearningRateRatio", t.MinLearningRateRatio, "must be in (0, 1]")
	case t.MinCount < 1:
		return invalid("minCount", t.MinCount, "must be at least 1")
	case math.IsNaN(t.SubsampleThreshold) || t.SubsampleThreshold < 0 || t.SubsampleThreshold >= 1:
		return invalid("subsampleThreshold", t.SubsampleThreshold, "must be in [0, 1)")
	case t.Workers < 0:
		return invalid("workers", t.Workers, "must not be negative")
	}

	switch t.UnknownPolicy {
	case UnknownDrop, UnknownReject:
	case UnknownMap:
		if t.UnknownToken == "" {
			return invalid("unknownToken", t.UnknownToken, "required when unknownPolicy is map")
		}
	default:
		return invalid("unknownPolicy", t.UnknownPolicy, "must be one of drop, map, reject")
	}
	return nil
}

// ParseUnknownPolicy converts a flag or YAML string into an UnknownPolicy.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case UnknownDrop, UnknownMap, UnknownReject:
		return p, nil
	}
	return "", invalid("unknownPolicy", s, "must be one of drop, map, reject")
}

// Source describes where token sequences come from.
type Source struct {
	Path          string   `yaml:"path,omitempty"`
	Languages     []string `yaml:"languages,omitempty"`
	ExcludeDirs   []string `yaml:"excludeDirs,omitempty"`
	IncludeValues bool     `yaml:"includeValues,omitempty"`
	KeepComments  bool     `yaml:"keepComments,omitempty"`
	MaxFileBytes  int      `yaml:"maxFileBytes,omitempty"`
}

// Index configures the optional token similarity graph.
type Index struct {
	Neighbors     int     `yaml:"neighbors,omitempty"`
	MinSimilarity float64 `yaml:"minSimilarity,omitempty"`
	Path          string  `yaml:"path,omitempty"`
}

// ProjectConfig holds project-level settings loaded from ast2vec.yml.
type ProjectConfig struct {
	Output   string   `yaml:"output,omitempty"`
	LogLevel string   `yaml:"logLevel,omitempty"`
	Source   Source   `yaml:"source,omitempty"`
	Training Training `yaml:"training"`
	Index    Index    `yaml:"index,omitempty"`
}

// Default returns a ProjectConfig populated with defaults.
func Default() *ProjectConfig {
	return &ProjectConfig{
		Output:   "embeddings.json",
		LogLevel: "info",
		Source:   Source{MaxFileBytes: 50000},
		Training: DefaultTraining(),
		Index:    Index{Neighbors: 5, MinSimilarity: 0.5},
	}
}

// Load attempts to read ast2vec.yml or ast2vec.yaml from the given
// directory. Returns the defaults (not an error) if no config file exists.
// Fields present in the file override the defaults.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"ast2vec.yml", "ast2vec.yaml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}
	return Default(), nil
}

// LoadFile reads a single YAML config file on top of the defaults.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
