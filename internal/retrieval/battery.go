// Package retrieval implements the structured Cypher battery, the semantic
// vector search with second-stage enrichment, and context fusion.
package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/intent"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// Per-intent query batteries. Order is fixed: it determines the
// "{intent}_{index}" result key each query reports under.
var batteries = map[intent.Tag][]string{
	intent.TagPlayerStats: {
		// Season overview
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($player_name IS NULL OR toLower(p.player_name) CONTAINS toLower($player_name))
  AND ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN p.player_name AS player,
       s.season_name AS season,
       sum(r.minutes) AS minutes,
       sum(r.goals_scored) AS goals,
       sum(r.assists) AS assists,
       sum(r.clean_sheets) AS clean_sheets,
       sum(r.total_points) AS total_points,
       sum(r.bonus) AS total_bonus`,
		// Recent form over the last five gameweeks
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($player_name IS NULL OR toLower(p.player_name) CONTAINS toLower($player_name))
  AND ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
WITH p, r, gw ORDER BY gw.GW_number DESC LIMIT 5
RETURN p.player_name AS player,
       collect(gw.GW_number) AS recent_gameweeks,
       collect(r.total_points) AS recent_points,
       avg(r.ict_index) AS avg_ict_form`,
		// Points per 90; the mins > 0 guard means zero minutes yields no row
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
WHERE ($player_name IS NULL OR toLower(p.player_name) CONTAINS toLower($player_name))
WITH p, sum(r.total_points) AS pts, sum(r.minutes) AS mins
WHERE mins > 0
RETURN p.player_name AS player,
       (toFloat(pts) / mins * 90) AS points_per_90`,
	},
	intent.TagTopPlayers: {
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($position IS NULL OR toLower(pos.name) CONTAINS toLower($position))
  AND ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN p.player_name AS player, pos.name AS position, sum(r.total_points) AS total_points
ORDER BY total_points DESC
LIMIT 10`,
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN p.player_name AS player, sum(r.goals_scored) AS goals
ORDER BY goals DESC
LIMIT 5`,
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN p.player_name AS player, sum(r.assists) AS assists, sum(r.ict_index) AS creativity_score
ORDER BY assists DESC
LIMIT 5`,
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE pos.name IN ['DEF', 'GK']
  AND ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN p.player_name AS player,
       sum(r.clean_sheets) AS clean_sheets,
       sum(r.goals_conceded) AS goals_conceded,
       sum(r.total_points) AS total_points
ORDER BY clean_sheets DESC, total_points DESC
LIMIT 5`,
	},
	intent.TagFixtureQuery: {
		`MATCH (t:Team)-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
WHERE ($team IS NOT NULL AND toLower(t.name) CONTAINS toLower($team))
  AND f.kickoff_time >= datetime()
WITH f, t
MATCH (f)-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(opponent:Team)
WHERE opponent <> t
RETURN f.kickoff_time AS kickoff,
       t.name AS team,
       opponent.name AS opponent
ORDER BY f.kickoff_time ASC
LIMIT 3`,
	},
	intent.TagTeamAnalysis: {
		`MATCH (t:Team)<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (p:Player)-[r:PLAYED_IN]->(f)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
WHERE ($team IS NOT NULL AND toLower(t.name) CONTAINS toLower($team))
  AND pos.name IN ['FWD', 'MID']
RETURN p.player_name AS player,
       sum(r.goals_scored) AS goals,
       sum(r.assists) AS assists,
       sum(r.total_points) AS points
ORDER BY points DESC
LIMIT 5`,
		`MATCH (t:Team)<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (p:Player)-[r:PLAYED_IN]->(f)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
WHERE ($team IS NOT NULL AND toLower(t.name) CONTAINS toLower($team))
  AND pos.name IN ['DEF', 'GK']
RETURN t.name AS team,
       sum(r.clean_sheets) AS total_clean_sheets,
       sum(r.goals_conceded) AS total_goals_conceded`,
		`MATCH (t:Team)<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (p:Player)-[r:PLAYED_IN]->(f)
WHERE ($team IS NOT NULL AND toLower(t.name) CONTAINS toLower($team))
RETURN p.player_name AS player,
       sum(r.minutes) AS minutes,
       sum(r.goals_scored) AS goals,
       sum(r.assists) AS assists,
       sum(r.clean_sheets) AS clean_sheets,
       sum(r.total_points) AS total_points,
       sum(r.bonus) AS total_bonus
ORDER BY total_points DESC
LIMIT 5`,
		`MATCH (t:Team)<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
MATCH (p:Player)-[r:PLAYED_IN]->(f)
WHERE ($team IS NOT NULL AND toLower(t.name) CONTAINS toLower($team))
  AND ($season IS NULL OR toLower(s.season_name) CONTAINS toLower($season))
RETURN t.name AS team,
       s.season_name AS season,
       count(DISTINCT f) AS games_played,
       sum(r.goals_scored) AS total_goals,
       sum(r.assists) AS total_assists,
       sum(r.clean_sheets) AS total_clean_sheets,
       sum(r.total_points) AS total_points,
       avg(r.total_points) AS avg_points_per_game`,
	},
	intent.TagRecommendation: {
		// Value picks: points per 90 with a 500 minute floor
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
WHERE ($position IS NULL OR toLower(pos.name) CONTAINS toLower($position))
WITH p, pos, sum(r.total_points) AS pts, sum(r.minutes) AS mins
WHERE mins > 500
RETURN p.player_name AS player,
       pos.name AS position,
       pts AS total_points,
       (toFloat(pts)/mins * 90) AS pts_per_90
ORDER BY pts_per_90 DESC
LIMIT 5`,
		`MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)
WITH p, r, gw ORDER BY gw.GW_number DESC
WITH p, collect(r.total_points)[0..3] AS recent_points
RETURN p.player_name AS player,
       reduce(s = 0, x IN recent_points | s + x) AS form_score
ORDER BY form_score DESC
LIMIT 5`,
	},
}

// StructuredRetriever runs the fixed Cypher battery for an intent.
type StructuredRetriever struct {
	logger *observability.Logger
	client graph.Client
}

func NewStructuredRetriever(logger *observability.Logger, client graph.Client) *StructuredRetriever {
	return &StructuredRetriever{
		logger: logger.WithComponent("retrieval_structured"),
		client: client,
	}
}

// QueryParams builds the five standard query parameters from the first
// element of each entity slot. Absent slots become nil, which the queries
// treat as wildcards.
func QueryParams(bag entities.Bag) map[string]any {
	return map[string]any{
		"player_name": firstOrNil(bag.PlayerName),
		"team":        firstOrNil(bag.Team),
		"position":    firstOrNil(bag.Position),
		"gameweek":    firstIntOrNil(bag.Gameweek),
		"season":      firstOrNil(bag.Season),
	}
}

func firstOrNil(items []string) any {
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func firstIntOrNil(items []string) any {
	if len(items) == 0 {
		return nil
	}
	if n, err := strconv.Atoi(items[0]); err == nil {
		return n
	}
	return nil
}

// Retrieve executes the battery for the intent concurrently and keys each
// query's rows as "{intent}_{index}", index starting at 1. A failing query is
// isolated and contributes no rows; the whole battery failing is terminal.
func (r *StructuredRetriever) Retrieve(ctx context.Context, bag entities.Bag, tag intent.Tag) (map[string][]graph.Row, error) {
	queries := batteries[tag]
	if len(queries) == 0 {
		return map[string][]graph.Row{}, nil
	}

	params := QueryParams(bag)
	results := make(map[string][]graph.Row, len(queries))
	errs := make([]error, len(queries))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i, cypher := range queries {
		wg.Add(1)
		go func(i int, cypher string) {
			defer wg.Done()
			key := fmt.Sprintf("%s_%d", tag, i+1)

			rows, err := r.client.Run(ctx, cypher, params)
			if err != nil {
				errs[i] = err
				r.logger.Warn().
					Str("query", key).
					Err(err).
					Msg("Battery query failed, continuing without its rows")
				return
			}

			mu.Lock()
			results[key] = rows
			mu.Unlock()
		}(i, cypher)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(queries) {
		return nil, fmt.Errorf("structured retrieval for %s: %w", tag, graph.ErrStoreUnavailable)
	}

	return results, nil
}
