package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/ast2vec/internal/index"
)

// GenerateMermaid produces a Mermaid graph LR diagram from an index store.
// Tokens are grouped by cluster; NEAR edges at rank 1 become arrows labelled
// with their similarity.
func GenerateMermaid(ctx context.Context, store index.Store) (string, error) {
	clusters, err := store.GetClusters(ctx)
	if err != nil {
		return "", fmt.Errorf("get clusters: %w", err)
	}

	edges, err := store.GetAllNeighbors(ctx)
	if err != nil {
		return "", fmt.Errorf("get neighbors: %w", err)
	}

	// Mermaid ids must be alphanumeric; tokens are arbitrary strings.
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%s (%.2f)\"]\n", getID("cluster:"+c.Name), label(c.Name), c.CohesionScore))
		for _, member := range c.Members {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID("token:"+member), label(member)))
		}
		sb.WriteString("  end\n")
	}

	declared := make(map[string]bool)
	for _, c := range clusters {
		for _, member := range c.Members {
			declared[member] = true
		}
	}
	node := func(token string) string {
		id := getID("token:" + token)
		if !declared[token] {
			declared[token] = true
			sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", id, label(token)))
		}
		return id
	}

	for _, e := range edges {
		if e.Rank != 1 {
			continue
		}
		src := node(e.Source)
		tgt := node(e.Target)
		sb.WriteString(fmt.Sprintf("  %s -->|%.2f| %s\n", src, e.Similarity, tgt))
	}

	return sb.String(), nil
}

// label makes a token safe inside a quoted Mermaid label and truncates it
// to 40 runes.
func label(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		s = string(r[:39]) + "…"
	}
	return strings.NewReplacer(`"`, "#quot;", "\n", " ", "\t", " ").Replace(s)
}
