package vocab

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/ast2vec/internal/config"
	"github.com/dusk-indust/ast2vec/internal/tokensource"
)

// position is where a token was first seen: file index, then offset.
type position struct {
	file, offset int
}

func (p position) before(o position) bool {
	if p.file != o.file {
		return p.file < o.file
	}
	return p.offset < o.offset
}

// tally holds the counts of one partition.
type tally struct {
	counts map[string]int64
	first  map[string]position
}

func newTally() tally {
	return tally{counts: make(map[string]int64), first: make(map[string]position)}
}

// count scans files, whose first element has global index base.
func (t tally) count(files []tokensource.File, base int) {
	for i, f := range files {
		for off, tok := range f.Tokens {
			if _, ok := t.first[tok]; !ok {
				t.first[tok] = position{file: base + i, offset: off}
			}
			t.counts[tok]++
		}
	}
}

// merge folds o into t. Summation and minimum are commutative, so the merge
// order of partitions does not matter.
func (t tally) merge(o tally) {
	for tok, c := range o.counts {
		t.counts[tok] += c
		if p, ok := t.first[tok]; !ok || o.first[tok].before(p) {
			t.first[tok] = o.first[tok]
		}
	}
}

// Build counts every token of files in one pass and freezes the vocabulary.
func Build(files []tokensource.File, opts Options) (*Vocabulary, error) {
	t := newTally()
	t.count(files, 0)
	return fromTally(t, opts.withDefaults())
}

// BuildParallel partitions files across workers, counts each partition
// independently and merges the counts. The result is identical to Build.
func BuildParallel(ctx context.Context, files []tokensource.File, workers int, opts Options) (*Vocabulary, error) {
	if workers <= 1 || len(files) < 2 {
		return Build(files, opts)
	}
	if workers > len(files) {
		workers = len(files)
	}

	parts := make([]tally, workers)
	chunk := (len(files) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(files))
		parts[w] = newTally()
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[w].count(files[lo:hi], lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := parts[0]
	for _, p := range parts[1:] {
		merged.merge(p)
	}
	return fromTally(merged, opts.withDefaults())
}

// fromTally filters, orders and freezes.
func fromTally(t tally, opts Options) (*Vocabulary, error) {
	type row struct {
		token string
		count int64
		first position
	}

	var kept []row
	discarded := make(map[string]struct{})
	var discardedCount int64
	for tok, c := range t.counts {
		if c < int64(opts.MinCount) {
			discarded[tok] = struct{}{}
			discardedCount += c
			continue
		}
		kept = append(kept, row{token: tok, count: c, first: t.first[tok]})
	}
	if len(kept) == 0 {
		return nil, &EmptyCorpusError{MinCount: opts.MinCount, Distinct: len(t.counts)}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].count != kept[j].count {
			return kept[i].count > kept[j].count
		}
		return kept[i].first.before(kept[j].first)
	})

	tokens := make([]string, 0, len(kept)+1)
	counts := make([]int64, 0, len(kept)+1)
	var unkCount int64
	for _, r := range kept {
		if opts.Policy == config.UnknownMap && r.token == opts.UnknownToken {
			unkCount = r.count
			continue
		}
		tokens = append(tokens, r.token)
		counts = append(counts, r.count)
	}

	// The reserved id always takes the last slot so merging discarded
	// counts into it never reorders the frequency-ranked ids.
	if opts.Policy == config.UnknownMap {
		tokens = append(tokens, opts.UnknownToken)
		counts = append(counts, unkCount+discardedCount)
		delete(discarded, opts.UnknownToken)
	}

	return freeze(tokens, counts, discarded, opts), nil
}
