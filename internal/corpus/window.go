package corpus

import (
	"iter"
	"math/rand/v2"
)

// WindowOptions controls how one epoch of windows is drawn.
type WindowOptions struct {
	Window    int  // maximum radius
	Dynamic   bool // draw the radius uniformly from 1..Window per center
	Subsample bool // apply the vocabulary keep-probabilities
}

// Window is a center id and its in-bounds context ids.
type Window struct {
	Doc      int
	Center   int32
	Contexts []int32

	// Consumed is the number of encoded tokens read since the previous
	// window, dropped ones included. Summed over an epoch it approaches
	// TotalTokens.
	Consumed int
}

// Pair is one positive (center, context) example.
type Pair struct {
	Center, Context int32
}

// Windows streams one epoch of windows. Every call subsamples afresh from
// rng, so each epoch sees a different subset of frequent tokens. Documents
// left with fewer than two tokens produce nothing for the epoch.
//
// The Contexts slice is reused and only valid until the next iteration.
func (c *Corpus) Windows(rng *rand.Rand, opts WindowOptions) iter.Seq[Window] {
	radius := max(opts.Window, 1)
	return func(yield func(Window) bool) {
		var (
			kept    []int32
			rawPos  []int
			ctx     = make([]int32, 0, 2*radius)
			pending int
		)
		for d, doc := range c.Documents {
			kept, rawPos = kept[:0], rawPos[:0]
			for p, id := range doc.IDs {
				if opts.Subsample {
					if k := c.vocab.KeepProbability(int(id)); k < 1 && rng.Float64() >= k {
						continue
					}
				}
				kept = append(kept, id)
				rawPos = append(rawPos, p)
			}
			if len(kept) < 2 {
				pending += len(doc.IDs)
				continue
			}

			prev := -1
			for i, center := range kept {
				r := radius
				if opts.Dynamic {
					r = 1 + rng.IntN(radius)
				}
				ctx = ctx[:0]
				for j := max(0, i-r); j <= min(len(kept)-1, i+r); j++ {
					if j != i {
						ctx = append(ctx, kept[j])
					}
				}

				consumed := rawPos[i] - prev + pending
				pending = 0
				prev = rawPos[i]
				if i == len(kept)-1 {
					consumed += len(doc.IDs) - 1 - rawPos[i]
				}

				if !yield(Window{Doc: d, Center: center, Contexts: ctx, Consumed: consumed}) {
					return
				}
			}
		}
	}
}

// Pairs flattens Windows into positive pairs.
func (c *Corpus) Pairs(rng *rand.Rand, opts WindowOptions) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		for w := range c.Windows(rng, opts) {
			for _, ctx := range w.Contexts {
				if !yield(Pair{Center: w.Center, Context: ctx}) {
					return
				}
			}
		}
	}
}
