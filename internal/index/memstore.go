package index

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu       sync.RWMutex
	tokens   map[string]TokenNode
	near     map[string][]NeighborEdge // keyed by source token
	edges    int
	clusters []ClusterNode
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		tokens: make(map[string]TokenNode),
		near:   make(map[string][]NeighborEdge),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddToken stores a token node keyed by its string.
func (m *MemStore) AddToken(_ context.Context, node TokenNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[node.Token] = node
	return nil
}

// AddNeighbor appends a NEAR edge to its source's list.
func (m *MemStore) AddNeighbor(_ context.Context, edge NeighborEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.near[edge.Source] = append(m.near[edge.Source], edge)
	m.edges++
	return nil
}

// AddCluster appends a cluster to the internal slice.
func (m *MemStore) AddCluster(_ context.Context, node ClusterNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = append(m.clusters, node)
	return nil
}

// GetToken returns the node for token, or nil if not found.
func (m *MemStore) GetToken(_ context.Context, token string) (*TokenNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// QueryTokens returns tokens containing query (case-insensitive) in id
// order, up to limit results. A limit <= 0 returns all matches.
func (m *MemStore) QueryTokens(_ context.Context, query string, limit int) ([]TokenNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(query)
	var results []TokenNode
	for _, t := range m.tokens {
		if strings.Contains(strings.ToLower(t.Token), lowerQuery) {
			results = append(results, t)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Neighbors returns the NEAR edges leaving token ordered by rank.
func (m *MemStore) Neighbors(_ context.Context, token string, limit int) ([]NeighborEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]NeighborEdge(nil), m.near[token]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetAllNeighbors returns a copy of every NEAR edge, grouped by source in
// token id order.
func (m *MemStore) GetAllNeighbors(_ context.Context) ([]NeighborEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sources := make([]string, 0, len(m.near))
	for s := range m.near {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		return m.tokens[sources[i]].ID < m.tokens[sources[j]].ID
	})
	out := make([]NeighborEdge, 0, m.edges)
	for _, s := range sources {
		out = append(out, m.near[s]...)
	}
	return out, nil
}

// GetClusters returns all stored clusters.
func (m *MemStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ClusterNode, len(m.clusters))
	copy(out, m.clusters)
	return out, nil
}

// Stats returns node and edge counts.
func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{
		TokenCount:    len(m.tokens),
		NeighborCount: m.edges,
		ClusterCount:  len(m.clusters),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
