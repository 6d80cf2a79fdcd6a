package retrieval

import (
	"context"
	"fmt"

	"github.com/fplanalytics/graphrag/internal/embedding"
	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/intent"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// DefaultTopK is the semantic search depth when the caller passes k <= 0.
const DefaultTopK = 5

// Enriched pairs one semantic hit's similarity score with the named
// structured lookups run for that node. Data values are either a single
// graph.Row, a []graph.Row, a map, or a string note.
type Enriched struct {
	Score float64        `json:"similarity_score"`
	Data  map[string]any `json:"data"`
}

// SemanticRetriever embeds the query, searches the vector index and enriches
// the hits with node-anchored structured lookups.
type SemanticRetriever struct {
	logger   *observability.Logger
	embedder embedding.Embedder
	index    *VectorIndex
	client   graph.Client
}

func NewSemanticRetriever(logger *observability.Logger, embedder embedding.Embedder, index *VectorIndex, client graph.Client) *SemanticRetriever {
	return &SemanticRetriever{
		logger:   logger.WithComponent("retrieval_semantic"),
		embedder: embedder,
		index:    index,
		client:   client,
	}
}

// Search embeds the query with the named model and returns the top k nodes
// by cosine similarity, unique by natural key.
func (s *SemanticRetriever) Search(ctx context.Context, query, model string, k int) ([]Hit, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vec, err := s.embedder.EmbedSingle(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.index.Search(model, vec, k), nil
}

// AnswerQuery runs the semantic search and then, per hit, a structured lookup
// keyed by the matched node's own identity and the query intent. Hits whose
// lookup produces no content are dropped. Individual lookup failures are
// isolated, but when every lookup failed and nothing usable came back the
// store outage is propagated instead of an empty result.
func (s *SemanticRetriever) AnswerQuery(ctx context.Context, query string, bag entities.Bag, tag intent.Tag, model string, k int) ([]Enriched, error) {
	hits, err := s.Search(ctx, query, model, k)
	if err != nil {
		return nil, err
	}

	season, _ := firstOrNil(bag.Season).(string)
	team, _ := firstOrNil(bag.Team).(string)
	position, _ := firstOrNil(bag.Position).(string)

	enr := &enrichment{SemanticRetriever: s}
	var out []Enriched
	seen := make(map[string]bool)
	for _, hit := range hits {
		key := hitKey(hit)
		if seen[key] {
			continue
		}
		seen[key] = true

		var data map[string]any
		switch {
		case tag == intent.TagPlayerStats && hit.Label == "Player":
			name, _ := hit.Props["player_name"].(string)
			data = enr.playerStats(ctx, name, season)
		case tag == intent.TagTeamAnalysis && hit.Label == "Team":
			name, _ := hit.Props["name"].(string)
			data = enr.teamAnalysis(ctx, name, season)
		case tag == intent.TagFixtureQuery:
			data = enr.fixtureInfo(ctx, hit.Props["fixture_number"], season, team)
		case tag == intent.TagTopPlayers:
			data = enr.topScorers(ctx, season, position)
		case tag == intent.TagRecommendation:
			data = enr.recommend(ctx, season, position)
		default:
			data = hit.Props
		}

		if !hasContent(data) {
			continue
		}
		out = append(out, Enriched{Score: hit.Score, Data: data})
	}

	if enr.lookupErr != nil && len(out) == 0 {
		return nil, fmt.Errorf("semantic enrichment for %s: %w", tag, graph.ErrStoreUnavailable)
	}

	return out, nil
}

// enrichment carries one AnswerQuery call's lookup state, so a store outage
// can be told apart from a genuinely empty result.
type enrichment struct {
	*SemanticRetriever
	lookupErr error
}

func (e *enrichment) record(err error) {
	e.logger.Warn().Err(err).Msg("Enrichment lookup failed")
	if e.lookupErr == nil {
		e.lookupErr = err
	}
}

func hitKey(hit Hit) string {
	for _, prop := range []string{"player_name", "name", "fixture_number"} {
		if v, ok := hit.Props[prop]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return hit.NodeID
}

// hasContent reports whether at least one sub-result holds data. Payloads
// carrying an error marker are treated as empty.
func hasContent(data map[string]any) bool {
	if len(data) == 0 {
		return false
	}
	if _, failed := data["error"]; failed {
		return false
	}
	for key, value := range data {
		if key == "note" {
			return true
		}
		switch v := value.(type) {
		case nil:
			continue
		case []graph.Row:
			if len(v) > 0 {
				return true
			}
		case graph.Row:
			if len(v) > 0 {
				return true
			}
		case map[string]any:
			if len(v) > 0 {
				return true
			}
		case string:
			if v != "" {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// playerStats runs the season-overview / recent-form / efficiency triple for
// one player. If the requested season has no records, the most recent season
// with data is substituted and an explanatory note attached.
func (s *enrichment) playerStats(ctx context.Context, name, season string) map[string]any {
	data := map[string]any{}

	if season != "" {
		rows, err := s.client.Run(ctx, `MATCH (p:Player {player_name: $player_name})-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season {season_name: $season})
RETURN count(r) AS match_count`, map[string]any{"player_name": name, "season": season})
		if err != nil {
			s.record(err)
			return map[string]any{"error": fmt.Sprintf("lookup failed for player %s", name)}
		}

		if len(rows) == 0 || rows[0].Int("match_count") == 0 {
			fallback, err := s.client.Run(ctx, `MATCH (p:Player {player_name: $player_name})-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
RETURN s.season_name AS available_season
ORDER BY s.season_name DESC
LIMIT 1`, map[string]any{"player_name": name})
			if err != nil {
				s.record(err)
			}
			if err != nil || len(fallback) == 0 {
				return map[string]any{"error": fmt.Sprintf("no data found for player %s", name)}
			}
			season = fallback[0].Str("available_season")
			data["note"] = fmt.Sprintf("No data for requested season. Showing data for %s", season)
		}
	}

	params := map[string]any{"player_name": name, "season": nilIfEmpty(season)}

	data["season_overview"] = s.singleRow(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE p.player_name = $player_name
  AND ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS player,
       s.season_name AS season,
       sum(r.minutes) AS minutes,
       sum(r.goals_scored) AS goals,
       sum(r.assists) AS assists,
       sum(r.clean_sheets) AS clean_sheets,
       sum(r.total_points) AS total_points,
       sum(r.bonus) AS total_bonus`, params)

	data["recent_form"] = s.singleRow(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE p.player_name = $player_name
  AND ($season IS NULL OR s.season_name = $season)
WITH p, r, gw ORDER BY gw.GW_number DESC LIMIT 5
RETURN p.player_name AS player,
       collect(gw.GW_number) AS recent_gameweeks,
       collect(r.total_points) AS recent_points,
       avg(r.ict_index) AS avg_ict_form`, params)

	data["efficiency"] = s.singleRow(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE p.player_name = $player_name
  AND ($season IS NULL OR s.season_name = $season)
WITH p, sum(r.total_points) AS pts, sum(r.minutes) AS mins
WHERE mins > 0
RETURN p.player_name AS player,
       (toFloat(pts) / mins * 90) AS points_per_90`, params)

	return data
}

func (s *enrichment) teamAnalysis(ctx context.Context, name, season string) map[string]any {
	params := map[string]any{"team": name, "season": nilIfEmpty(season)}

	attackers := s.manyRows(ctx, `MATCH (t:Team {name: $team})<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (p:Player)-[r:PLAYED_IN]->(f)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR s.season_name = $season)
WITH p,
     sum(r.total_points) AS points,
     sum(r.goals_scored) AS goals,
     sum(r.assists) AS assists
WHERE points > 0
RETURN p.player_name AS player, goals, assists, points
ORDER BY points DESC
LIMIT 10`, params)

	overview := map[string]any{"team": name, "season": season}
	if stats := s.singleRow(ctx, `MATCH (t:Team {name: $team})<-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR s.season_name = $season)
OPTIONAL MATCH (our:Player)-[r:PLAYED_IN]->(f)
WITH t, f, coalesce(sum(r.goals_scored), 0) AS our_goals
OPTIONAL MATCH (opp:Player)-[or:PLAYED_IN]->(f)
WHERE NOT (f)-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]->(t)
WITH f, our_goals, coalesce(sum(or.goals_scored), 0) AS opp_goals
RETURN count(DISTINCT f) AS played,
       sum(our_goals) AS goals_scored,
       sum(opp_goals) AS goals_conceded`, params); stats != nil {
		overview["played"] = stats.Int("played")
		overview["goals_scored"] = stats.Int("goals_scored")
		overview["goals_conceded"] = stats.Int("goals_conceded")
		overview["goal_difference"] = stats.Int("goals_scored") - stats.Int("goals_conceded")
	}

	return map[string]any{
		"top_attackers": attackers,
		"team_overview": overview,
	}
}

func (s *enrichment) fixtureInfo(ctx context.Context, fixtureNumber any, season, team string) map[string]any {
	data := map[string]any{}

	data["upcoming_fixtures"] = s.manyRows(ctx, `MATCH (my_team:Team)
WHERE ($team IS NULL OR my_team.name = $team)
MATCH (my_team)-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(f:Fixture)
WHERE f.kickoff_time >= datetime()
WITH f, my_team
MATCH (f)-[:HAS_HOME_TEAM|HAS_AWAY_TEAM]-(opponent:Team)
WHERE opponent <> my_team
RETURN f.kickoff_time AS kickoff,
       my_team.name AS team,
       opponent.name AS opponent
ORDER BY f.kickoff_time ASC
LIMIT 3`, map[string]any{"team": nilIfEmpty(team)})

	if fixtureNumber != nil {
		data["fixture_details"] = s.singleRow(ctx, `MATCH (f:Fixture {fixture_number: $fix})
WHERE ($season IS NULL OR f.season = $season)
MATCH (f)-[:HAS_HOME_TEAM]->(home:Team)
MATCH (f)-[:HAS_AWAY_TEAM]->(away:Team)
RETURN f.kickoff_time AS kickoff,
       home.name AS home_team,
       away.name AS away_team,
       f.season AS season`, map[string]any{"fix": fixtureNumber, "season": nilIfEmpty(season)})
	}

	return data
}

func (s *enrichment) topScorers(ctx context.Context, season, position string) map[string]any {
	params := map[string]any{"season": nilIfEmpty(season), "position": nilIfEmpty(position)}

	return map[string]any{
		"top_points": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($position IS NULL OR pos.name = $position)
  AND ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS player, pos.name AS position, sum(r.total_points) AS total_points
ORDER BY total_points DESC
LIMIT 5`, params),
		"top_scorers": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS player, sum(r.goals_scored) AS goals, sum(r.minutes) AS minutes
ORDER BY goals DESC
LIMIT 5`, params),
		"top_playmakers": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS player, sum(r.assists) AS assists, sum(r.ict_index) AS total_ict
ORDER BY assists DESC
LIMIT 5`, params),
		"top_defenders": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE pos.name IN ['DEF']
  AND ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS player,
       sum(r.clean_sheets) AS clean_sheets,
       sum(r.goals_conceded) AS goals_conceded,
       sum(r.total_points) AS total_points
ORDER BY clean_sheets DESC, total_points DESC
LIMIT 5`, params),
	}
}

func (s *enrichment) recommend(ctx context.Context, season, position string) map[string]any {
	params := map[string]any{"season": nilIfEmpty(season), "position": nilIfEmpty(position)}

	return map[string]any{
		"value_picks": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (p)-[:PLAYS_AS]->(pos:Position)
WHERE ($position IS NULL OR pos.name = $position)
WITH p, pos, sum(r.total_points) AS pts, sum(r.minutes) AS mins
WHERE mins > 500
RETURN p.player_name AS player,
       pos.name AS position,
       pts AS total_points,
       (toFloat(pts)/mins * 90) AS pts_per_90
ORDER BY pts_per_90 DESC
LIMIT 5`, params),
		"captaincy_options": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)
WITH p, r, gw ORDER BY gw.GW_number DESC
WITH p, collect(r.total_points)[0..3] AS recent_points
RETURN p.player_name AS player,
       reduce(s = 0, x IN recent_points | s + x) AS form_score
ORDER BY form_score DESC
LIMIT 5`, params),
		"high_performers": s.manyRows(ctx, `MATCH (p:Player)-[r:PLAYED_IN]->(f:Fixture)
MATCH (f)<-[:HAS_FIXTURE]-(gw:Gameweek)<-[:HAS_GW]-(s:Season)
WHERE r.total_points > 100
  AND ($season IS NULL OR s.season_name = $season)
RETURN p.player_name AS name,
       sum(r.total_points) AS total_points,
       s.season_name AS season
ORDER BY total_points DESC
LIMIT 5`, params),
	}
}

// singleRow runs cypher and returns the first row, or nil. Errors are
// isolated to this sub-result but recorded for the caller.
func (s *enrichment) singleRow(ctx context.Context, cypher string, params map[string]any) graph.Row {
	rows, err := s.client.Run(ctx, cypher, params)
	if err != nil {
		s.record(err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (s *enrichment) manyRows(ctx context.Context, cypher string, params map[string]any) []graph.Row {
	rows, err := s.client.Run(ctx, cypher, params)
	if err != nil {
		s.record(err)
		return nil
	}
	return rows
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
