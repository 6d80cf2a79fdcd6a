package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// IndexedNode is one graph node loaded into the in-memory vector index. Props
// never contain embedding vectors; those live only in Vectors.
type IndexedNode struct {
	Label   string
	NodeID  string
	Props   map[string]any
	Vectors map[string][]float32 // model name -> stored vector
}

// Hit is one semantic search result. Props are vector-free node properties.
type Hit struct {
	Label  string         `json:"label"`
	NodeID string         `json:"node_id"`
	Props  map[string]any `json:"node"`
	Score  float64        `json:"similarity_score"`
}

// VectorIndex holds node vectors for cosine search. It is loaded once at
// startup (or after an embedding sync) and is read-only during queries.
type VectorIndex struct {
	mu    sync.RWMutex
	nodes []IndexedNode
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Replace swaps in a freshly loaded node set.
func (idx *VectorIndex) Replace(nodes []IndexedNode) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nodes = nodes
}

// Add appends one node.
func (idx *VectorIndex) Add(node IndexedNode) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.nodes = append(idx.nodes, node)
}

// Len reports the number of indexed nodes.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// Search scores every node holding a vector for model against queryVec,
// keeps the best-scoring occurrence per natural key, and returns the top k
// sorted by descending similarity.
func (idx *VectorIndex) Search(model string, queryVec []float32, k int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := make(map[string]Hit)
	for _, node := range idx.nodes {
		vec, ok := node.Vectors[model]
		if !ok {
			continue
		}
		score := cosineSimilarity(queryVec, vec)
		key := naturalKey(node)
		if prev, ok := best[key]; !ok || score > prev.Score {
			best[key] = Hit{
				Label:  node.Label,
				NodeID: node.NodeID,
				Props:  copyProps(node.Props),
				Score:  score,
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].NodeID < hits[j].NodeID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// naturalKey picks a node's unique identity: player name, generic name,
// fixture number, gameweek number or season, with the raw node id as last
// resort.
func naturalKey(node IndexedNode) string {
	for _, prop := range []string{"player_name", "name", "fixture_number", "GW_number", "season_name"} {
		if v, ok := node.Props[prop]; ok && v != nil {
			s := fmt.Sprintf("%v", v)
			if strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return node.NodeID
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
