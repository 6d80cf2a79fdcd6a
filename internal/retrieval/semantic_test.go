package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/intent"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// stubEmbedder returns the same vector for every text.
type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(context.Context, string, string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubEmbedder) Models() []string { return []string{"mpnet"} }
func (s *stubEmbedder) Dimension() int   { return len(s.vec) }

func playerIndex() *VectorIndex {
	return indexWith(
		IndexedNode{Label: "Player", NodeID: "1", Props: map[string]any{"player_name": "Salah"},
			Vectors: map[string][]float32{"mpnet": {1, 0}}},
		IndexedNode{Label: "Team", NodeID: "2", Props: map[string]any{"name": "arsenal"},
			Vectors: map[string][]float32{"mpnet": {0.5, 0.5}}},
	)
}

func TestSemanticSearchDefaultsK(t *testing.T) {
	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), graph.NewMockClient())

	hits, err := s.Search(context.Background(), "salah form", "mpnet", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Player", hits[0].Label)
}

func TestSemanticSearchEmbedFailure(t *testing.T) {
	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{err: errors.New("model down")}, playerIndex(), graph.NewMockClient())

	_, err := s.Search(context.Background(), "salah form", "mpnet", 5)
	require.Error(t, err)
}

func TestAnswerQueryPlayerStatsEnrichment(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("RETURN count(r) AS match_count", []graph.Row{{"match_count": 1}})
	mc.Respond("sum(r.bonus) AS total_bonus", []graph.Row{{"player": "Salah", "total_points": 211}})
	mc.Respond("collect(gw.GW_number)", []graph.Row{{"player": "Salah", "recent_points": []any{8, 12}}})
	mc.Respond("points_per_90", []graph.Row{{"player": "Salah", "points_per_90": 6.2}})

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	bag := entities.Bag{Season: []string{"2022-23"}}
	out, err := s.AnswerQuery(context.Background(), "how good is salah", bag, intent.TagPlayerStats, "mpnet", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	data := out[0].Data
	assert.Equal(t, graph.Row{"player": "Salah", "total_points": 211}, data["season_overview"])
	assert.NotNil(t, data["recent_form"])
	assert.NotNil(t, data["efficiency"])
	assert.NotContains(t, data, "note")
}

func TestAnswerQuerySeasonFallbackAttachesNote(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("RETURN count(r) AS match_count", []graph.Row{{"match_count": 0}})
	mc.Respond("available_season", []graph.Row{{"available_season": "2023-24"}})
	mc.RespondFunc("sum(r.bonus) AS total_bonus", func(params map[string]any) []graph.Row {
		if params["season"] == "2023-24" {
			return []graph.Row{{"player": "Salah", "season": "2023-24"}}
		}
		return nil
	})

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	bag := entities.Bag{Season: []string{"1999-00"}}
	out, err := s.AnswerQuery(context.Background(), "salah stats", bag, intent.TagPlayerStats, "mpnet", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "No data for requested season. Showing data for 2023-24", out[0].Data["note"])
	assert.NotNil(t, out[0].Data["season_overview"])
}

func TestAnswerQueryDropsEmptyPayloads(t *testing.T) {
	mc := graph.NewMockClient()
	// Player exists but no season data anywhere: lookup yields an error
	// marker, which must be dropped rather than surfaced.
	mc.Respond("RETURN count(r) AS match_count", []graph.Row{{"match_count": 0}})
	mc.Respond("available_season", nil)

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	bag := entities.Bag{Season: []string{"2022-23"}}
	out, err := s.AnswerQuery(context.Background(), "salah stats", bag, intent.TagPlayerStats, "mpnet", 1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnswerQueryStoreOutageIsTerminal(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Fail(errors.New("connection refused"))

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	// Every lookup fails and nothing usable comes back: that is a store
	// outage, not an empty result.
	_, err := s.AnswerQuery(context.Background(), "salah stats", entities.Bag{}, intent.TagPlayerStats, "mpnet", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrStoreUnavailable)
}

func TestAnswerQueryToleratesPartialLookupFailure(t *testing.T) {
	mc := graph.NewMockClient()
	mc.FailOn("points_per_90", errors.New("timeout"))
	mc.Respond("RETURN count(r) AS match_count", []graph.Row{{"match_count": 1}})
	mc.Respond("sum(r.bonus) AS total_bonus", []graph.Row{{"player": "Salah", "total_points": 211}})

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	bag := entities.Bag{Season: []string{"2022-23"}}
	out, err := s.AnswerQuery(context.Background(), "salah stats", bag, intent.TagPlayerStats, "mpnet", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.NotNil(t, out[0].Data["season_overview"])
	assert.Nil(t, out[0].Data["efficiency"])
}

func TestAnswerQueryUnmatchedIntentReturnsBareProps(t *testing.T) {
	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{0.5, 0.5}}, playerIndex(), graph.NewMockClient())

	// team_analysis intent but the top hit is a Player node, so the node's
	// own properties come back untouched.
	out, err := s.AnswerQuery(context.Background(), "anything", entities.Bag{}, intent.TagTeamAnalysis, "mpnet", 2)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var sawBareProps bool
	for _, item := range out {
		if item.Data["player_name"] == "Salah" {
			sawBareProps = true
		}
	}
	assert.True(t, sawBareProps)
}

func TestAnswerQueryTopPlayersUsesEntityFilters(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("ORDER BY goals DESC", []graph.Row{{"player": "Haaland", "goals": 36}})

	s := NewSemanticRetriever(observability.Nop(), &stubEmbedder{vec: []float32{1, 0}}, playerIndex(), mc)

	bag := entities.Bag{Position: []string{"FWD"}, Season: []string{"2022-23"}}
	out, err := s.AnswerQuery(context.Background(), "top forwards", bag, intent.TagTopPlayers, "mpnet", 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, []graph.Row{{"player": "Haaland", "goals": 36}}, out[0].Data["top_scorers"])

	var sawPosition bool
	for _, call := range mc.Calls() {
		if call.Params["position"] == "FWD" {
			sawPosition = true
		}
	}
	assert.True(t, sawPosition)
}
