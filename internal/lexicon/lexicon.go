// Package lexicon holds the canonical entity vocabularies used for
// deterministic entity extraction: team names and aliases, season identifiers,
// position synonyms, and statistic synonyms. Vocabularies are loaded once at
// startup; team and season lists come from the graph, the rest are static.
package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// Position is a player position.
type Position string

const (
	PositionGK  Position = "GK"
	PositionDEF Position = "DEF"
	PositionMID Position = "MID"
	PositionFWD Position = "FWD"
)

type positionEntry struct {
	synonym  string
	position Position
}

// Position synonyms, matched as substrings of the lower-cased query.
var positionSynonyms = []positionEntry{
	{"forwards", PositionFWD}, {"forward", PositionFWD}, {"strikers", PositionFWD},
	{"striker", PositionFWD}, {"attackers", PositionFWD}, {"attacker", PositionFWD},
	{"fwds", PositionFWD}, {"fwd", PositionFWD},
	{"midfielders", PositionMID}, {"midfielder", PositionMID}, {"wingers", PositionMID},
	{"winger", PositionMID}, {"mids", PositionMID}, {"mid", PositionMID},
	{"cam", PositionMID}, {"cdm", PositionMID}, {"cmf", PositionMID},
	{"defenders", PositionDEF}, {"defender", PositionDEF}, {"fullbacks", PositionDEF},
	{"fullback", PositionDEF}, {"defs", PositionDEF}, {"def", PositionDEF},
	{"cb", PositionDEF}, {"lb", PositionDEF}, {"rb", PositionDEF},
	{"goalkeepers", PositionGK}, {"goalkeeper", PositionGK}, {"keeper", PositionGK},
	{"gk", PositionGK},
}

type statisticEntry struct {
	canonical string
	keywords  []string
}

// Statistic synonyms, canonical names match the performance-record fields.
var statisticSynonyms = []statisticEntry{
	{"goals", []string{"goals", "goal", "scored"}},
	{"assists", []string{"assists", "assist"}},
	{"saves", []string{"saves", "save"}},
	{"minutes", []string{"minutes", "minute", "played"}},
	{"bonus", []string{"bonuses", "bonus"}},
	{"clean sheets", []string{"clean sheets", "clean sheet"}},
	{"goals conceded", []string{"goals conceded", "goal conceded", "conceded"}},
	{"own goals", []string{"own goals", "own goal"}},
	{"penalties saved", []string{"penalties saved", "penalty saved"}},
	{"penalties missed", []string{"penalties missed", "penalty missed"}},
	{"yellow cards", []string{"yellow cards", "yellow card"}},
	{"red cards", []string{"red cards", "red card"}},
	{"total points", []string{"total points", "points"}},
	{"bps", []string{"bonus points system", "bps"}},
	{"form", []string{"form"}},
	{"threat", []string{"threat"}},
	{"creativity", []string{"creativity"}},
	{"influence", []string{"influence"}},
}

type aliasEntry struct {
	alias     string
	canonical string
}

// DefaultTeamAliases maps common club nicknames and long forms to the
// canonical team names used by the graph. A raw mention resolves to exactly
// one canonical name.
var DefaultTeamAliases = map[string]string{
	"manchester city":   "man city",
	"city":              "man city",
	"citizens":          "man city",
	"manchester united": "man utd",
	"man united":        "man utd",
	"united":            "man utd",
	"red devils":        "man utd",
	"gunners":           "arsenal",
	"tottenham":         "spurs",
	"tottenham hotspur": "spurs",
	"reds":              "liverpool",
	"blues":             "chelsea",
	"hammers":           "west ham",
	"west ham united":   "west ham",
	"toffees":           "everton",
	"magpies":           "newcastle",
	"newcastle united":  "newcastle",
	"aston villa":       "villa",
	"seagulls":          "brighton",
	"foxes":             "leicester",
	"wolverhampton":     "wolves",
}

// Lexicon holds the loaded vocabularies.
type Lexicon struct {
	teams   []string     // canonical names
	needles []aliasEntry // canonical names plus aliases, longest first
	seasons []string
}

// New builds a Lexicon from explicit vocabularies. Used directly in tests;
// production code goes through Load.
func New(teams []string, aliases map[string]string, seasons []string) *Lexicon {
	lx := &Lexicon{seasons: append([]string(nil), seasons...)}

	for _, t := range teams {
		canonical := strings.ToLower(t)
		lx.teams = append(lx.teams, canonical)
		lx.needles = append(lx.needles, aliasEntry{canonical, canonical})
	}

	for alias, canonical := range aliases {
		lx.needles = append(lx.needles, aliasEntry{strings.ToLower(alias), strings.ToLower(canonical)})
	}

	// Longest needle first so "city" never shadows "manchester city".
	sort.SliceStable(lx.needles, func(i, j int) bool {
		if len(lx.needles[i].alias) != len(lx.needles[j].alias) {
			return len(lx.needles[i].alias) > len(lx.needles[j].alias)
		}
		return lx.needles[i].alias < lx.needles[j].alias
	})

	return lx
}

// Load reads team and season vocabularies from the graph and combines them
// with the static alias and synonym tables.
func Load(ctx context.Context, gc graph.Client, logger *observability.Logger) (*Lexicon, error) {
	teamRows, err := gc.Run(ctx, "MATCH (t:Team) WITH DISTINCT t RETURN t.name AS name", nil)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}

	teams := make([]string, 0, len(teamRows))
	for _, row := range teamRows {
		if name := row.Str("name"); name != "" {
			teams = append(teams, name)
		}
	}

	seasonRows, err := gc.Run(ctx, "MATCH (s:Season) RETURN s.season_name AS season", nil)
	if err != nil {
		return nil, fmt.Errorf("load seasons: %w", err)
	}

	seasons := make([]string, 0, len(seasonRows))
	for _, row := range seasonRows {
		if s := row.Str("season"); s != "" {
			seasons = append(seasons, s)
		}
	}

	logger.Info().
		Int("teams", len(teams)).
		Int("seasons", len(seasons)).
		Msg("Lexicon loaded")

	return New(teams, DefaultTeamAliases, seasons), nil
}

// Teams returns the canonical team names.
func (lx *Lexicon) Teams() []string {
	return append([]string(nil), lx.teams...)
}

// Seasons returns the known season identifiers.
func (lx *Lexicon) Seasons() []string {
	return append([]string(nil), lx.seasons...)
}

// MatchTeams returns all distinct canonical team names mentioned in text,
// ordered by where they appear. Needles are tried longest first, and matched
// spans are consumed, so a shorter alias inside an already-matched longer one
// never produces a second hit.
func (lx *Lexicon) MatchTeams(text string) []string {
	lower := strings.ToLower(text)

	type hit struct {
		canonical string
		pos       int
	}

	var hits []hit
	seen := make(map[string]int) // canonical -> earliest position
	covered := make([]bool, len(lower))

	for _, ne := range lx.needles {
		idx := strings.Index(lower, ne.alias)
		for idx >= 0 {
			if !covered[idx] {
				for i := idx; i < idx+len(ne.alias); i++ {
					covered[i] = true
				}
				if prev, ok := seen[ne.canonical]; !ok || idx < prev {
					seen[ne.canonical] = idx
				}
			}
			next := strings.Index(lower[idx+1:], ne.alias)
			if next < 0 {
				break
			}
			idx = idx + 1 + next
		}
	}

	for canonical, pos := range seen {
		hits = append(hits, hit{canonical, pos})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].canonical < hits[j].canonical
	})

	matched := make([]string, 0, len(hits))
	for _, h := range hits {
		matched = append(matched, h.canonical)
	}
	return matched
}

// MatchSeasons returns all known seasons whose leading year appears in text,
// e.g. "2022" matches "2022-23". Unrelated 4-digit numbers can false-positive;
// disambiguation is deferred to the wildcard-tolerant retrieval queries.
func (lx *Lexicon) MatchSeasons(text string) []string {
	var matched []string
	for _, season := range lx.seasons {
		leading, _, _ := strings.Cut(season, "-")
		if leading != "" && strings.Contains(text, leading) {
			matched = append(matched, season)
		}
	}
	return matched
}

// MatchPositions returns every distinct position whose synonym appears in
// text, in discovery order.
func (lx *Lexicon) MatchPositions(text string) []Position {
	lower := strings.ToLower(text)

	var matched []Position
	seen := make(map[Position]bool)
	for _, pe := range positionSynonyms {
		if strings.Contains(lower, pe.synonym) && !seen[pe.position] {
			seen[pe.position] = true
			matched = append(matched, pe.position)
		}
	}
	return matched
}

// MatchStatistics returns every distinct canonical statistic whose keyword
// appears in text, in discovery order.
func (lx *Lexicon) MatchStatistics(text string) []string {
	lower := strings.ToLower(text)

	var matched []string
	for _, se := range statisticSynonyms {
		for _, kw := range se.keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, se.canonical)
				break
			}
		}
	}
	return matched
}
