// Package export renders trained embeddings and their similarity index for
// external tools.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dusk-indust/ast2vec/internal/embedding"
	"github.com/dusk-indust/ast2vec/internal/index"
)

// SummaryExport is the top-level JSON summary of a run.
type SummaryExport struct {
	RunID      string          `json:"runId"`
	ExportedAt string          `json:"exportedAt"`
	CreatedAt  string          `json:"createdAt"`
	VocabSize  int             `json:"vocabSize"`
	Dimension  int             `json:"dimension"`
	Policy     string          `json:"policy"`
	Tokens     []TokenExport   `json:"tokens"`
	Clusters   []ClusterExport `json:"clusters,omitempty"`
}

// TokenExport describes one vocabulary entry and its nearest tokens.
type TokenExport struct {
	Token     string   `json:"token"`
	ID        int      `json:"id"`
	Count     int64    `json:"count"`
	Neighbors []string `json:"neighbors,omitempty"`
}

// ClusterExport describes one token cluster.
type ClusterExport struct {
	Name          string   `json:"name"`
	CohesionScore float64  `json:"cohesionScore"`
	Members       []string `json:"members"`
}

// ExportSummary builds a SummaryExport listing every token with up to k
// neighbors. Clusters are read from store when it is non-nil.
func ExportSummary(ctx context.Context, emb *embedding.Embeddings, store index.Store, k int) (*SummaryExport, error) {
	out := &SummaryExport{
		RunID:      emb.RunID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		CreatedAt:  emb.CreatedAt.UTC().Format(time.RFC3339),
		VocabSize:  emb.Len(),
		Dimension:  emb.Dimension,
		Policy:     string(emb.Vocab.Policy()),
		Tokens:     make([]TokenExport, 0, emb.Len()),
	}

	for id := 0; id < emb.Len(); id++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		te := TokenExport{
			Token: emb.Vocab.Token(id),
			ID:    id,
			Count: emb.Vocab.Count(id),
		}
		for _, n := range emb.NearestToVector(emb.VectorByID(id), k, id) {
			te.Neighbors = append(te.Neighbors, n.Token)
		}
		out.Tokens = append(out.Tokens, te)
	}

	if store == nil {
		return out, nil
	}
	clusters, err := store.GetClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("get clusters: %w", err)
	}
	for _, c := range clusters {
		out.Clusters = append(out.Clusters, ClusterExport{
			Name:          c.Name,
			CohesionScore: c.CohesionScore,
			Members:       c.Members,
		})
	}
	return out, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
