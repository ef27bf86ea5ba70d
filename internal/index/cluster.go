package index

import (
	"context"
	"fmt"
	"sort"
)

// ComputeClusters finds connected components of the mutual-neighbor graph
// and stores them as ClusterNodes.
//
// Algorithm:
//  1. Build an undirected adjacency list from pairs of tokens that list each
//     other as NEAR.
//  2. Find connected components via BFS, visiting tokens in id order.
//  3. For each component with >= 2 tokens, compute a cohesion score and store
//     the cluster under the name of its most frequent member.
func ComputeClusters(ctx context.Context, store Store, tokens []TokenNode) ([]ClusterNode, error) {
	edges, err := store.GetAllNeighbors(ctx)
	if err != nil {
		return nil, fmt.Errorf("get neighbors: %w", err)
	}

	byToken := make(map[string]TokenNode, len(tokens))
	for _, t := range tokens {
		byToken[t.Token] = t
	}
	ordered := append([]TokenNode(nil), tokens...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	out := outgoing(edges, byToken)
	adj := mutualAdjacency(out)

	visited := make(map[string]bool, len(tokens))
	var clusters []ClusterNode
	for _, t := range ordered {
		if visited[t.Token] {
			continue
		}
		component := bfsComponent(t.Token, adj, visited)
		if len(component) < 2 {
			continue
		}
		sort.Slice(component, func(i, j int) bool {
			return byToken[component[i]].ID < byToken[component[j]].ID
		})
		cluster := ClusterNode{
			Name:          component[0],
			CohesionScore: computeCohesion(component, out),
			Members:       component,
		}
		if err := store.AddCluster(ctx, cluster); err != nil {
			return nil, fmt.Errorf("add cluster %q: %w", cluster.Name, err)
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

// outgoing indexes NEAR edges between known tokens by source.
func outgoing(edges []NeighborEdge, known map[string]TokenNode) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		if _, ok := known[e.Target]; !ok {
			continue
		}
		if out[e.Source] == nil {
			out[e.Source] = make(map[string]bool)
		}
		out[e.Source][e.Target] = true
	}
	return out
}

// mutualAdjacency keeps only edges present in both directions.
func mutualAdjacency(out map[string]map[string]bool) map[string][]string {
	adj := make(map[string][]string)
	for src, targets := range out {
		for dst := range targets {
			if out[dst][src] {
				adj[src] = append(adj[src], dst)
			}
		}
	}
	return adj
}

// bfsComponent performs BFS from start on the adjacency list and returns
// all reachable nodes. It marks visited nodes as it goes.
func bfsComponent(start string, adj map[string][]string, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	return component
}

// computeCohesion is internal / (internal + external) over the directed NEAR
// edges leaving the component's members.
func computeCohesion(component []string, out map[string]map[string]bool) float64 {
	members := make(map[string]bool, len(component))
	for _, m := range component {
		members[m] = true
	}

	internal, external := 0, 0
	for _, m := range component {
		for dst := range out[m] {
			if members[dst] {
				internal++
			} else {
				external++
			}
		}
	}
	total := internal + external
	if total == 0 {
		return 0
	}
	return float64(internal) / float64(total)
}
