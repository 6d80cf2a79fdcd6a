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

func TestRetrieveKeysQueriesByIntentAndIndex(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Respond("PLAYED_IN", []graph.Row{{"player": "Salah"}})

	r := NewStructuredRetriever(observability.Nop(), mc)
	results, err := r.Retrieve(context.Background(), entities.Bag{}, intent.TagPlayerStats)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Contains(t, results, "player_stats_1")
	assert.Contains(t, results, "player_stats_2")
	assert.Contains(t, results, "player_stats_3")
	assert.Equal(t, []graph.Row{{"player": "Salah"}}, results["player_stats_1"])
}

func TestRetrievePassesFirstSlotElementsAsParams(t *testing.T) {
	mc := graph.NewMockClient()

	r := NewStructuredRetriever(observability.Nop(), mc)
	bag := entities.Bag{
		PlayerName: []string{"Salah", "Haaland"},
		Gameweek:   []string{"5"},
		Season:     []string{"2022-23"},
	}
	_, err := r.Retrieve(context.Background(), bag, intent.TagPlayerStats)
	require.NoError(t, err)

	calls := mc.Calls()
	require.NotEmpty(t, calls)
	for _, call := range calls {
		assert.Equal(t, "Salah", call.Params["player_name"])
		assert.Equal(t, 5, call.Params["gameweek"])
		assert.Equal(t, "2022-23", call.Params["season"])
		assert.Nil(t, call.Params["team"])
		assert.Nil(t, call.Params["position"])
	}
}

func TestRetrievePartialFailureIsIsolated(t *testing.T) {
	mc := graph.NewMockClient()
	mc.FailOn("points_per_90", errors.New("query timeout"))
	mc.Respond("PLAYED_IN", []graph.Row{{"player": "Salah"}})

	r := NewStructuredRetriever(observability.Nop(), mc)
	results, err := r.Retrieve(context.Background(), entities.Bag{}, intent.TagPlayerStats)
	require.NoError(t, err)

	assert.Contains(t, results, "player_stats_1")
	assert.Contains(t, results, "player_stats_2")
	assert.NotContains(t, results, "player_stats_3")
}

func TestRetrieveTotalFailureIsTerminal(t *testing.T) {
	mc := graph.NewMockClient()
	mc.Fail(errors.New("connection refused"))

	r := NewStructuredRetriever(observability.Nop(), mc)
	_, err := r.Retrieve(context.Background(), entities.Bag{}, intent.TagTopPlayers)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrStoreUnavailable)
}

func TestRetrieveEmptyResultsAreNormal(t *testing.T) {
	mc := graph.NewMockClient()

	r := NewStructuredRetriever(observability.Nop(), mc)
	results, err := r.Retrieve(context.Background(), entities.Bag{}, intent.TagFixtureQuery)
	require.NoError(t, err)
	assert.Contains(t, results, "fixture_query_1")
	assert.Empty(t, results["fixture_query_1"])
}

func TestQueryParamsNonNumericGameweekIsWildcard(t *testing.T) {
	params := QueryParams(entities.Bag{Gameweek: []string{"next"}})
	assert.Nil(t, params["gameweek"])
}
