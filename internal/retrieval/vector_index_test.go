package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexWith(nodes ...IndexedNode) *VectorIndex {
	idx := NewVectorIndex()
	idx.Replace(nodes)
	return idx
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	idx := indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"mpnet": {1, 0, 0}}},
		IndexedNode{Label: "Player", NodeID: "2", Props: map[string]any{"player_name": "Haaland"},
			Vectors: map[string][]float32{"mpnet": {0, 1, 0}}},
		IndexedNode{Label: "Team", NodeID: "3", Props: map[string]any{"name": "arsenal"},
			Vectors: map[string][]float32{"mpnet": {0.9, 0.1, 0}}},
	)

	hits := idx.Search("mpnet", []float32{1, 0, 0}, 5)
	require.Len(t, hits, 3)
	assert.Equal(t, "Salah", hits[0].Props["player_name"])
	assert.Equal(t, "arsenal", hits[1].Props["name"])
	assert.Equal(t, "Haaland", hits[2].Props["player_name"])
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}

func TestSearchSkipsNodesWithoutModelVector(t *testing.T) {
	idx := indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"minilm": {1, 0}}},
	)

	assert.Empty(t, idx.Search("mpnet", []float32{1, 0}, 5))
	assert.Len(t, idx.Search("minilm", []float32{1, 0}, 5), 1)
}

func TestSearchDedupsByNaturalKeyKeepingMax(t *testing.T) {
	// Same player indexed twice; only the higher-similarity copy survives.
	idx := indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"mpnet": {0, 1, 0}}},
		IndexedNode{Label: "Player", NodeID: "2", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"mpnet": {1, 0, 0}}},
	)

	hits := idx.Search("mpnet", []float32{1, 0, 0}, 5)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].NodeID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchReturnsAtMostK(t *testing.T) {
	idx := indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "A"},
			Vectors: map[string][]float32{"mpnet": {1, 0}}},
		IndexedNode{Label: "Player", NodeID: "2", Props: map[string]any{"player_name": "B"},
			Vectors: map[string][]float32{"mpnet": {0.8, 0.2}}},
		IndexedNode{Label: "Player", NodeID: "3", Props: map[string]any{"player_name": "C"},
			Vectors: map[string][]float32{"mpnet": {0.5, 0.5}}},
	)

	assert.Len(t, idx.Search("mpnet", []float32{1, 0}, 2), 2)
	// Fewer nodes than k returns them all.
	assert.Len(t, idx.Search("mpnet", []float32{1, 0}, 5), 3)
}

func TestSearchPropsNeverContainVectors(t *testing.T) {
	idx := indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"mpnet": {1, 0}, "minilm": {0, 1}}},
	)

	hits := idx.Search("mpnet", []float32{1, 0}, 1)
	require.Len(t, hits, 1)
	assert.NotContains(t, hits[0].Props, "embedding_mpnet")
	assert.NotContains(t, hits[0].Props, "embedding_minilm")
}

func TestNaturalKeyFallbackChain(t *testing.T) {
	assert.Equal(t, "Salah", naturalKey(IndexedNode{Props: map[string]any{"player_name": "Salah", "name": "x"}}))
	assert.Equal(t, "arsenal", naturalKey(IndexedNode{Props: map[string]any{"name": "arsenal"}}))
	assert.Equal(t, "42", naturalKey(IndexedNode{Props: map[string]any{"fixture_number": 42}}))
	assert.Equal(t, "node-9", naturalKey(IndexedNode{NodeID: "node-9", Props: map[string]any{}}))
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 3}), 1e-9)
}
