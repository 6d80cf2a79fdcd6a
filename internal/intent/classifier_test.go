package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fplanalytics/graphrag/internal/genai"
	"github.com/fplanalytics/graphrag/internal/lexicon"
	"github.com/fplanalytics/graphrag/internal/observability"
)

func testLexicon() *lexicon.Lexicon {
	return lexicon.New(
		[]string{"arsenal", "man city", "liverpool", "west ham"},
		lexicon.DefaultTeamAliases,
		[]string{"2022-23", "2023-24"},
	)
}

func newTestClassifier(gen genai.Generator) *Classifier {
	if gen == nil {
		gen = genai.NewMockGenerator()
	}
	return NewClassifier(observability.Nop(), testLexicon(), gen)
}

func TestClassifyKeywordRules(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Tag
	}{
		{"recommendation", "Who should I pick as captain this week?", TagRecommendation},
		{"budget", "Suggest a midfielder under 8.0 budget", TagRecommendation},
		{"player stats", "How many goals did Haaland score?", TagPlayerStats},
		{"player form", "What is Salah's form like?", TagPlayerStats},
		{"fixture", "When do Arsenal play next?", TagFixtureQuery},
		{"fixture keyword", "Show me the fixture list for gameweek 10", TagFixtureQuery},
		{"team analysis", "Tell me about the Liverpool squad", TagTeamAnalysis},
		{"top players", "Highest scoring midfielders of all time", TagTopPlayers},
	}

	c := newTestClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyRulePriority(t *testing.T) {
	c := newTestClassifier(nil)

	// Recommendation cues outrank stat cues.
	got, err := c.Classify(context.Background(), "Recommend a player with good points")
	require.NoError(t, err)
	assert.Equal(t, TagRecommendation, got)

	// Stat cues outrank fixture cues.
	got, err = c.Classify(context.Background(), "How many goals in the last match?")
	require.NoError(t, err)
	assert.Equal(t, TagPlayerStats, got)
}

func TestClassifyTeamRuleNegativeCheck(t *testing.T) {
	c := newTestClassifier(nil)

	// A team name alone classifies as team analysis.
	got, err := c.Classify(context.Background(), "Arsenal overview please")
	require.NoError(t, err)
	assert.Equal(t, TagTeamAnalysis, got)

	// The word "fixture" next to a team name must not land on team analysis.
	got, err = c.Classify(context.Background(), "Arsenal fixture difficulty")
	require.NoError(t, err)
	assert.Equal(t, TagFixtureQuery, got)
}

func TestClassifyDefendersScenario(t *testing.T) {
	c := newTestClassifier(nil)

	// "best" is a recommendation cue and outranks every later rule.
	got, err := c.Classify(context.Background(), "Who are the best defenders in Manchester City for gameweek 5?")
	require.NoError(t, err)
	assert.Equal(t, TagRecommendation, got)
}

func TestClassifyGenerativeFallback(t *testing.T) {
	gen := genai.NewMockGenerator("fixture_query")
	c := newTestClassifier(gen)

	got, err := c.Classify(context.Background(), "Anything interesting happening soon?")
	require.NoError(t, err)
	assert.Equal(t, TagFixtureQuery, got)
	require.Len(t, gen.Prompts, 1)
	assert.Contains(t, gen.Prompts[0], "Anything interesting happening soon?")
}

func TestClassifyGenerativeFallbackWhitespace(t *testing.T) {
	gen := genai.NewMockGenerator("  Team_Analysis \n")
	c := newTestClassifier(gen)

	got, err := c.Classify(context.Background(), "Tell me something")
	require.NoError(t, err)
	assert.Equal(t, TagTeamAnalysis, got)
}

func TestClassifyGenerativeFallbackUnknownTag(t *testing.T) {
	gen := genai.NewMockGenerator("small_talk")
	c := newTestClassifier(gen)

	_, err := c.Classify(context.Background(), "Tell me something")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown intent")
}

func TestClassifyGenerativeFallbackFailureIsTerminal(t *testing.T) {
	gen := genai.NewMockGenerator()
	gen.Fail(errors.New("upstream down"))
	c := newTestClassifier(gen)

	_, err := c.Classify(context.Background(), "Tell me something")
	require.Error(t, err)
}
