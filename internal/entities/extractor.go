package entities

import (
	"context"
	"regexp"
	"strings"

	"github.com/fplanalytics/graphrag/internal/lexicon"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// gw5, gw 5, gameweek 5, week 5
var gameweekPattern = regexp.MustCompile(`(?:gw|gameweek|week)\s*([0-9]+)`)

// Extractor is the deterministic extraction path: a named-entity tagger seeds
// player and team mentions, then independent gazetteer and regex passes fill
// the remaining slots.
type Extractor struct {
	logger  *observability.Logger
	lexicon *lexicon.Lexicon
	tagger  Tagger
}

// NewExtractor creates a deterministic extractor. tagger may be nil, in which
// case a capitalization heuristic backed by the lexicon is used.
func NewExtractor(logger *observability.Logger, lx *lexicon.Lexicon, tagger Tagger) *Extractor {
	if tagger == nil {
		tagger = NewHeuristicTagger(func(text string) bool {
			return len(lx.MatchTeams(text)) > 0
		})
	}
	return &Extractor{
		logger:  logger.WithComponent("entities"),
		lexicon: lx,
		tagger:  tagger,
	}
}

// Extract fills a Bag from the query. Absence of any entity is normal;
// downstream queries treat missing slots as wildcards. A tagger failure
// degrades to the gazetteer passes alone.
func (e *Extractor) Extract(ctx context.Context, query string) (Bag, error) {
	var bag Bag

	spans, err := e.tagger.Tag(ctx, query)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Entity tagger failed, continuing with gazetteer passes")
	}
	for _, span := range spans {
		switch span.Label {
		case LabelPerson:
			bag.PlayerName = append(bag.PlayerName, span.Text)
		case LabelOrg:
			// Mentions the gazetteer can resolve come back canonical from
			// the team pass below; keep only unresolvable ORG spans raw.
			if len(e.lexicon.MatchTeams(strings.ToLower(span.Text))) == 0 {
				bag.Team = append(bag.Team, span.Text)
			}
		case LabelDate:
			bag.Season = append(bag.Season, span.Text)
		}
	}

	text := strings.ToLower(query)

	for _, m := range gameweekPattern.FindAllStringSubmatch(text, -1) {
		bag.Gameweek = append(bag.Gameweek, m[1])
	}
	for _, pos := range e.lexicon.MatchPositions(text) {
		bag.Position = append(bag.Position, string(pos))
	}
	// Canonical matches go first so they win first-seen order over any raw
	// ORG spans that survived.
	bag.Team = append(e.lexicon.MatchTeams(text), bag.Team...)
	bag.Season = append(e.lexicon.MatchSeasons(text), bag.Season...)
	bag.Statistic = append(bag.Statistic, e.lexicon.MatchStatistics(text)...)

	bag = bag.Normalize()

	e.logger.Debug().
		Strs("teams", bag.Team).
		Strs("players", bag.PlayerName).
		Strs("gameweeks", bag.Gameweek).
		Msg("Deterministic extraction complete")

	return bag, nil
}
