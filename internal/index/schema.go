package index

// --- Models ---

// TokenNode is one vocabulary entry in the similarity graph.
type TokenNode struct {
	Token string  `json:"token"`
	ID    int     `json:"id"`
	Count int64   `json:"count"`
	Norm  float64 `json:"norm"`
}

// NeighborEdge is a directed NEAR edge: Target is among the top-ranked
// cosine neighbors of Source. Rank starts at 1.
type NeighborEdge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// ClusterNode is a connected component of the NEAR graph.
type ClusterNode struct {
	Name          string   `json:"name"` // most frequent member
	CohesionScore float64  `json:"cohesionScore"`
	Members       []string `json:"members"` // tokens, most frequent first
}

// Stats summarizes a similarity graph.
type Stats struct {
	TokenCount    int `json:"tokenCount"`
	NeighborCount int `json:"neighborCount"`
	ClusterCount  int `json:"clusterCount"`
}
