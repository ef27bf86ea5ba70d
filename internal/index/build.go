package index

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/ast2vec/internal/embedding"
)

// BuildNeighborGraph inserts every token of emb and a NEAR edge to each of
// its k most similar tokens scoring at least minSimilarity. Neighbor lists
// are ranked in parallel and inserted in token id order.
func BuildNeighborGraph(ctx context.Context, store Store, emb *embedding.Embeddings, k int, minSimilarity float64) ([]TokenNode, error) {
	v := emb.Vocab
	tokens := make([]TokenNode, v.Len())
	for id := range tokens {
		tokens[id] = TokenNode{
			Token: v.Token(id),
			ID:    id,
			Count: v.Count(id),
			Norm:  float64(emb.Norm(id)),
		}
	}

	lists := make([][]embedding.Neighbor, v.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for id := range lists {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lists[id] = emb.NearestToVector(emb.VectorByID(id), k, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range tokens {
		if err := store.AddToken(ctx, t); err != nil {
			return nil, fmt.Errorf("add token %q: %w", t.Token, err)
		}
	}
	for id, list := range lists {
		for rank, n := range list {
			if n.Similarity < minSimilarity {
				break
			}
			edge := NeighborEdge{
				Source:     tokens[id].Token,
				Target:     n.Token,
				Similarity: n.Similarity,
				Rank:       rank + 1,
			}
			if err := store.AddNeighbor(ctx, edge); err != nil {
				return nil, fmt.Errorf("add neighbor %s->%s: %w", edge.Source, edge.Target, err)
			}
		}
	}
	return tokens, nil
}
