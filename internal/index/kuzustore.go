//go:build cgo

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements Store on KuzuDB. It requires CGO because the go-kuzu
// driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at
// dbPath, so the similarity graph can be queried after the run exits.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// KuzuDB creates the leaf directory itself.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Token(
		token STRING,
		id INT64,
		frequency INT64,
		norm DOUBLE,
		PRIMARY KEY(token)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Cluster(
		name STRING,
		cohesion_score DOUBLE,
		PRIMARY KEY(name)
	)`,
	`CREATE REL TABLE IF NOT EXISTS NEAR(FROM Token TO Token, similarity DOUBLE, neighbor_rank INT64)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM Token TO Cluster, member_pos INT64)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddToken inserts a Token node.
func (s *KuzuStore) AddToken(_ context.Context, node TokenNode) error {
	return s.exec(
		"CREATE (t:Token {token: $token, id: $id, frequency: $freq, norm: $norm})",
		map[string]any{
			"token": node.Token,
			"id":    int64(node.ID),
			"freq":  node.Count,
			"norm":  node.Norm,
		},
	)
}

// AddNeighbor inserts a NEAR relationship between two existing tokens.
func (s *KuzuStore) AddNeighbor(_ context.Context, edge NeighborEdge) error {
	return s.exec(
		`MATCH (a:Token {token: $src}), (b:Token {token: $dst})
		 CREATE (a)-[:NEAR {similarity: $sim, neighbor_rank: $rank}]->(b)`,
		map[string]any{
			"src":  edge.Source,
			"dst":  edge.Target,
			"sim":  edge.Similarity,
			"rank": int64(edge.Rank),
		},
	)
}

// AddCluster inserts a Cluster node and a BELONGS_TO edge per member.
func (s *KuzuStore) AddCluster(_ context.Context, node ClusterNode) error {
	if err := s.exec(
		"CREATE (c:Cluster {name: $name, cohesion_score: $score})",
		map[string]any{
			"name":  node.Name,
			"score": node.CohesionScore,
		},
	); err != nil {
		return err
	}
	for i, member := range node.Members {
		if err := s.exec(
			`MATCH (t:Token {token: $member}), (c:Cluster {name: $name})
			 CREATE (t)-[:BELONGS_TO {member_pos: $pos}]->(c)`,
			map[string]any{
				"member": member,
				"name":   node.Name,
				"pos":    int64(i),
			},
		); err != nil {
			return err
		}
	}
	return nil
}

// ---------- Read operations ----------

// GetToken retrieves a single Token node, or returns nil if not found.
func (s *KuzuStore) GetToken(_ context.Context, token string) (*TokenNode, error) {
	rows, err := s.query(
		"MATCH (t:Token {token: $token}) RETURN t.token, t.id, t.frequency, t.norm",
		map[string]any{"token": token},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToToken(rows[0]), nil
}

// QueryTokens returns tokens containing the query string in id order.
// A limit <= 0 returns all matches.
func (s *KuzuStore) QueryTokens(_ context.Context, queryStr string, limit int) ([]TokenNode, error) {
	cypher := `MATCH (t:Token) WHERE lower(t.token) CONTAINS lower($q)
		 RETURN t.token, t.id, t.frequency, t.norm
		 ORDER BY t.id`
	params := map[string]any{"q": queryStr}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]TokenNode, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToToken(r))
	}
	return out, nil
}

// Neighbors returns the NEAR edges leaving token ordered by rank.
func (s *KuzuStore) Neighbors(_ context.Context, token string, limit int) ([]NeighborEdge, error) {
	cypher := `MATCH (a:Token {token: $token})-[r:NEAR]->(b:Token)
		 RETURN a.token, b.token, r.similarity, r.neighbor_rank
		 ORDER BY r.neighbor_rank`
	params := map[string]any{"token": token}
	if limit > 0 {
		cypher += " LIMIT $lim"
		params["lim"] = int64(limit)
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	return rowsToEdges(rows), nil
}

// GetAllNeighbors returns every NEAR edge grouped by source id.
func (s *KuzuStore) GetAllNeighbors(_ context.Context) ([]NeighborEdge, error) {
	rows, err := s.query(
		`MATCH (a:Token)-[r:NEAR]->(b:Token)
		 RETURN a.token, b.token, r.similarity, r.neighbor_rank
		 ORDER BY a.id, r.neighbor_rank`,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return rowsToEdges(rows), nil
}

// GetClusters returns all Cluster nodes with their members in stored order.
func (s *KuzuStore) GetClusters(_ context.Context) ([]ClusterNode, error) {
	rows, err := s.query(
		"MATCH (c:Cluster) RETURN c.name, c.cohesion_score ORDER BY c.name",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]ClusterNode, 0, len(rows))
	for _, r := range rows {
		name := toString(r[0])
		memberRows, err := s.query(
			`MATCH (t:Token)-[b:BELONGS_TO]->(c:Cluster {name: $name})
			 RETURN t.token ORDER BY b.member_pos`,
			map[string]any{"name": name},
		)
		if err != nil {
			return nil, err
		}
		members := make([]string, 0, len(memberRows))
		for _, mr := range memberRows {
			members = append(members, toString(mr[0]))
		}
		out = append(out, ClusterNode{
			Name:          name,
			CohesionScore: toFloat64(r[1]),
			Members:       members,
		})
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns node and NEAR edge counts.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	tokens, err := s.count("MATCH (n:Token) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	clusters, err := s.count("MATCH (n:Cluster) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	near, err := s.count("MATCH ()-[r:NEAR]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	return &Stats{TokenCount: tokens, NeighborCount: near, ClusterCount: clusters}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// count runs a single-value count query.
func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToToken converts a 4-column row: token, id, frequency, norm.
func rowToToken(r []any) *TokenNode {
	return &TokenNode{
		Token: toString(r[0]),
		ID:    toInt(r[1]),
		Count: int64(toInt(r[2])),
		Norm:  toFloat64(r[3]),
	}
}

// rowsToEdges converts 4-column rows: source, target, similarity, rank.
func rowsToEdges(rows [][]any) []NeighborEdge {
	out := make([]NeighborEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, NeighborEdge{
			Source:     toString(r[0]),
			Target:     toString(r[1]),
			Similarity: toFloat64(r[2]),
			Rank:       toInt(r[3]),
		})
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
