// Package intent classifies user queries into retrieval intents using an
// ordered battery of keyword rules with a generative fallback.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/fplanalytics/graphrag/internal/genai"
	"github.com/fplanalytics/graphrag/internal/lexicon"
	"github.com/fplanalytics/graphrag/internal/observability"
)

// Tag is the coarse task category a query falls into.
type Tag string

const (
	TagPlayerStats    Tag = "player_stats"
	TagTopPlayers     Tag = "top_players"
	TagFixtureQuery   Tag = "fixture_query"
	TagTeamAnalysis   Tag = "team_analysis"
	TagRecommendation Tag = "recommendation"
)

// AllTags lists the valid intent tags in a stable order.
var AllTags = []Tag{TagPlayerStats, TagTopPlayers, TagFixtureQuery, TagTeamAnalysis, TagRecommendation}

// rule is one prioritized keyword test. Rules are evaluated in order and the
// first match wins.
type rule struct {
	name    string
	tag     Tag
	matches func(text string) bool
}

// Classifier maps free-text queries to intent tags.
type Classifier struct {
	logger    *observability.Logger
	generator genai.Generator
	rules     []rule
}

// NewClassifier creates a classifier. The lexicon supplies the team-name cues
// for the team-analysis rule; the generator absorbs phrasings no rule covers.
func NewClassifier(logger *observability.Logger, lx *lexicon.Lexicon, generator genai.Generator) *Classifier {
	c := &Classifier{
		logger:    logger.WithComponent("intent"),
		generator: generator,
	}
	c.rules = buildRules(lx)
	return c
}

var recommendationCues = []string{
	"recommend", "suggest", "best", "top", "captain", "vice-captain",
	"who should i pick", "who to buy", "who to transfer", "budget",
}

var playerStatCues = []string{
	"how many", "how much", "points", "goals", "assists", "clean sheets",
	"bonus", "bps", "form", "ict", "threat", "creativity", "influence",
	"played", "minutes", "xg", "xa", "performance", "stats", "scored",
}

var fixtureCues = []string{
	"fixture", "match", "game", "against", "vs", "play", "when", "next game",
	"double gameweek", "blank gameweek", "dgw", "bgw", "schedule",
}

var teamCues = []string{"team", "squad"}

var topPlayerCues = []string{
	"highest", "top ", "best", "most", "least", "ever", "all time",
	"leaders", "better than", "who has the most", "highest scoring",
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

func buildRules(lx *lexicon.Lexicon) []rule {
	return []rule{
		{
			name: "recommendation_cues",
			tag:  TagRecommendation,
			matches: func(text string) bool {
				return containsAny(text, recommendationCues)
			},
		},
		{
			name: "player_stat_cues",
			tag:  TagPlayerStats,
			matches: func(text string) bool {
				return containsAny(text, playerStatCues)
			},
		},
		{
			name: "fixture_cues",
			tag:  TagFixtureQuery,
			matches: func(text string) bool {
				return containsAny(text, fixtureCues)
			},
		},
		{
			// A bare team mention means team analysis, but "Arsenal's next
			// match" belongs to the fixture rule above; the negative check
			// keeps a team name from hijacking fixture questions that the
			// fixture rule missed.
			name: "team_cues",
			tag:  TagTeamAnalysis,
			matches: func(text string) bool {
				if !containsAny(text, teamCues) && len(lx.MatchTeams(text)) == 0 {
					return false
				}
				return !strings.Contains(text, "fixture") && !strings.Contains(text, "match")
			},
		},
		{
			name: "superlative_cues",
			tag:  TagTopPlayers,
			matches: func(text string) bool {
				return containsAny(text, topPlayerCues)
			},
		},
	}
}

// Classify returns the intent for the query. Deterministic rules are tried in
// priority order; if none fires, the generative fallback decides. Fallback
// failure is terminal for the query.
func (c *Classifier) Classify(ctx context.Context, query string) (Tag, error) {
	text := strings.ToLower(strings.TrimSpace(query))

	for _, r := range c.rules {
		if r.matches(text) {
			c.logger.Debug().
				Str("rule", r.name).
				Str("intent", string(r.tag)).
				Msg("Keyword rule matched")
			return r.tag, nil
		}
	}

	return c.classifyGenerative(ctx, query)
}

const classifyPromptTemplate = `Classify the user's query into ONE intent from the following list:
- player_stats
- top_players
- fixture_query
- team_analysis
- recommendation

Only respond with the intent name.

User Query: "%s"`

func (c *Classifier) classifyGenerative(ctx context.Context, query string) (Tag, error) {
	reply, err := c.generator.Generate(ctx, fmt.Sprintf(classifyPromptTemplate, query))
	if err != nil {
		return "", fmt.Errorf("generative intent classification: %w", err)
	}

	tag := Tag(strings.ToLower(strings.TrimSpace(reply)))
	for _, valid := range AllTags {
		if tag == valid {
			c.logger.Debug().Str("intent", string(tag)).Msg("Generative fallback classified")
			return tag, nil
		}
	}

	return "", fmt.Errorf("generative classifier returned unknown intent %q", reply)
}
