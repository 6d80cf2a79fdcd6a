package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplanalytics/graphrag/internal/embedding"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/observability"
)

func TestBuildNodeText(t *testing.T) {
	tests := []struct {
		label string
		props map[string]any
		want  string
	}{
		{"Season", map[string]any{"season_name": "2022-23"}, "Season 2022-23"},
		{"Gameweek", map[string]any{"GW_number": 5, "season": "2022-23"}, "Gameweek 5 of season 2022-23"},
		{"Team", map[string]any{"name": "arsenal"}, "Team arsenal"},
		{"Position", map[string]any{"name": "DEF"}, "Position DEF"},
		{"Player", map[string]any{"player_name": "Salah", "position_name": "MID"}, "Salah plays as MID"},
		{"Unknown", map[string]any{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildNodeText(tt.label, tt.props))
	}
}

func TestSyncEmbeddingsWritesVectorPerModel(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("labels(n)[0] AS label", []graph.Row{
		{"id": "1", "label": "Player", "props": map[string]any{"player_name": "Salah", "position_name": "MID"}},
		{"id": "2", "label": "Unknown", "props": map[string]any{}},
	})

	emb := embedding.NewMockEmbedder(4, "minilm", "mpnet")
	ix := New(observability.Nop(), mc, emb)

	var ticks int
	n, err := ix.SyncEmbeddings(context.Background(), func(done, total int) {
		ticks++
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, ticks)

	var sets []string
	for _, call := range mc.Calls() {
		if strings.Contains(call.Cypher, "SET n.embedding_") {
			sets = append(sets, call.Cypher)
		}
	}
	require.Len(t, sets, 2)
	assert.Contains(t, sets[0], "embedding_minilm")
	assert.Contains(t, sets[1], "embedding_mpnet")
}

func TestSyncEmbeddingsScanFailure(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Fail(errors.New("store down"))

	ix := New(observability.Nop(), mc, embedding.NewMockEmbedder(4, "mpnet"))
	_, err := ix.SyncEmbeddings(context.Background(), nil)
	require.Error(t, err)
}

func TestLoadIndexStripsVectorsFromProps(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("labels(n)[0] AS label", []graph.Row{
		{"id": "1", "label": "Player", "props": map[string]any{
			"player_name":      "Salah",
			"embedding_mpnet":  []any{1.0, 0.0},
			"embedding_minilm": []any{0.0, 1.0},
		}},
		{"id": "2", "label": "Team", "props": map[string]any{"name": "arsenal"}},
	})

	ix := New(observability.Nop(), mc, embedding.NewMockEmbedder(2, "mpnet"))
	idx, err := ix.LoadIndex(context.Background())
	require.NoError(t, err)

	// The vector-free team node is not searchable.
	assert.Equal(t, 1, idx.Len())

	hits := idx.Search("mpnet", []float32{1, 0}, 5)
	require.Len(t, hits, 1)
	assert.Equal(t, "Salah", hits[0].Props["player_name"])
	assert.NotContains(t, hits[0].Props, "embedding_mpnet")
	assert.NotContains(t, hits[0].Props, "embedding_minilm")
}

func TestToVectorRejectsMixedLists(t *testing.T) {
	assert.Nil(t, toVector([]any{1.0, "x"}))
	assert.Nil(t, toVector("not a list"))
	assert.Equal(t, []float32{1, 2}, toVector([]any{1.0, 2.0}))
}
