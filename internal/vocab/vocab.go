// Package vocab builds the frozen token vocabulary: dense ids ordered by
// descending frequency, raw counts, subsampling keep-probabilities and the
// negative-sampling distribution.
package vocab

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/dusk-indust/ast2vec/internal/config"
)

// negativePower flattens the unigram distribution used for negative samples.
const negativePower = 0.75

// Options are the vocabulary-related parts of config.Training.
type Options struct {
	MinCount           int
	SubsampleThreshold float64
	Policy             config.UnknownPolicy
	UnknownToken       string
}

// OptionsFrom extracts vocabulary options from a training configuration.
func OptionsFrom(cfg config.Training) Options {
	return Options{
		MinCount:           cfg.MinCount,
		SubsampleThreshold: cfg.SubsampleThreshold,
		Policy:             cfg.UnknownPolicy,
		UnknownToken:       cfg.UnknownToken,
	}
}

func (o Options) withDefaults() Options {
	if o.MinCount < 1 {
		o.MinCount = 1
	}
	if o.Policy == "" {
		o.Policy = config.UnknownDrop
	}
	if o.Policy == config.UnknownMap && o.UnknownToken == "" {
		o.UnknownToken = config.DefaultUnknownToken
	}
	return o
}

// EmptyCorpusError is returned when no token survives MinCount filtering.
type EmptyCorpusError struct {
	MinCount int
	Distinct int // distinct tokens seen before filtering
}

func (e *EmptyCorpusError) Error() string {
	return fmt.Sprintf("empty vocabulary: none of %d distinct tokens reaches min count %d", e.Distinct, e.MinCount)
}

// Entry is one vocabulary row.
type Entry struct {
	Token string `json:"token"`
	ID    int    `json:"id"`
	Count int64  `json:"count"`
}

// Vocabulary is a frozen bidirectional token <-> id mapping. It has no
// mutators; every method is safe for concurrent use.
//
// Ids follow descending count with first-seen ties. Under the map policy the
// unknown token always holds the last id, whatever its merged count.
type Vocabulary struct {
	tokens    []string
	counts    []int64
	index     map[string]int
	discarded map[string]struct{}

	keep       []float64
	cumulative []float64 // negative-sampling CDF, unnormalized
	total      int64

	unknownID int // -1 when the policy is not map
	opts      Options
}

// freeze builds a Vocabulary from tokens already in id order.
func freeze(tokens []string, counts []int64, discarded map[string]struct{}, opts Options) *Vocabulary {
	v := &Vocabulary{
		tokens:    tokens,
		counts:    counts,
		index:     make(map[string]int, len(tokens)),
		discarded: discarded,
		unknownID: -1,
		opts:      opts,
	}
	for id, tok := range tokens {
		v.index[tok] = id
		v.total += counts[id]
	}
	if opts.Policy == config.UnknownMap {
		if id, ok := v.index[opts.UnknownToken]; ok {
			v.unknownID = id
		}
	}

	v.keep = make([]float64, len(tokens))
	v.cumulative = make([]float64, len(tokens))
	var acc float64
	for id, c := range counts {
		v.keep[id] = keepProbability(c, v.total, opts.SubsampleThreshold)
		acc += math.Pow(float64(c), negativePower)
		v.cumulative[id] = acc
	}
	return v
}

// keepProbability is min(1, sqrt(t/r) + t/r) with r = count/total. A zero
// threshold disables subsampling.
func keepProbability(count, total int64, t float64) float64 {
	if t <= 0 || count <= 0 || total <= 0 {
		return 1
	}
	q := t / (float64(count) / float64(total))
	return math.Min(1, math.Sqrt(q)+q)
}

// FromEntries rebuilds a frozen vocabulary from persisted rows. Rows must be
// in id order (entries[i].ID == i) with unique tokens.
func FromEntries(entries []Entry, opts Options) (*Vocabulary, error) {
	opts = opts.withDefaults()
	if len(entries) == 0 {
		return nil, &EmptyCorpusError{MinCount: opts.MinCount}
	}
	tokens := make([]string, len(entries))
	counts := make([]int64, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID != i {
			return nil, fmt.Errorf("entry %d has id %d", i, e.ID)
		}
		if seen[e.Token] {
			return nil, fmt.Errorf("duplicate token %q", e.Token)
		}
		if e.Count < 0 {
			return nil, fmt.Errorf("token %q has negative count %d", e.Token, e.Count)
		}
		seen[e.Token] = true
		tokens[i] = e.Token
		counts[i] = e.Count
	}
	return freeze(tokens, counts, nil, opts), nil
}

// Len returns the vocabulary size V.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// Options returns the options the vocabulary was built with.
func (v *Vocabulary) Options() Options { return v.opts }

// Policy returns the unknown-token policy.
func (v *Vocabulary) Policy() config.UnknownPolicy { return v.opts.Policy }

// Total returns the sum of counts over the vocabulary.
func (v *Vocabulary) Total() int64 { return v.total }

// ID returns the id of token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.index[token]
	return id, ok
}

// Token returns the token string for id. It panics if id is out of range.
func (v *Vocabulary) Token(id int) string { return v.tokens[id] }

// Count returns the raw occurrence count of id.
func (v *Vocabulary) Count(id int) int64 { return v.counts[id] }

// UnknownID returns the reserved unknown id when the map policy is active.
func (v *Vocabulary) UnknownID() (int, bool) {
	return v.unknownID, v.unknownID >= 0
}

// Discarded reports whether token was seen by the builder but dropped for
// falling below MinCount. Vocabularies loaded from entries know no
// discarded tokens.
func (v *Vocabulary) Discarded(token string) bool {
	_, ok := v.discarded[token]
	return ok
}

// KeepProbability returns the subsampling keep-probability of id.
func (v *Vocabulary) KeepProbability(id int) float64 { return v.keep[id] }

// NegativeProbability returns the normalized probability of drawing id as a
// negative sample.
func (v *Vocabulary) NegativeProbability(id int) float64 {
	sum := v.cumulative[len(v.cumulative)-1]
	if sum == 0 {
		return 0
	}
	prev := 0.0
	if id > 0 {
		prev = v.cumulative[id-1]
	}
	return (v.cumulative[id] - prev) / sum
}

// SampleNegative draws an id from the count^0.75 distribution.
func (v *Vocabulary) SampleNegative(rng *rand.Rand) int {
	sum := v.cumulative[len(v.cumulative)-1]
	u := rng.Float64() * sum
	id := sort.Search(len(v.cumulative), func(i int) bool { return v.cumulative[i] > u })
	if id >= len(v.cumulative) {
		id = len(v.cumulative) - 1
	}
	return id
}

// Entries returns every row in id order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.tokens))
	for id, tok := range v.tokens {
		out[id] = Entry{Token: tok, ID: id, Count: v.counts[id]}
	}
	return out
}
