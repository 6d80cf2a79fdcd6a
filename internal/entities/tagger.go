package entities

import (
	"context"
	"strings"
	"unicode"
)

// Span labels.
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelDate   = "DATE"
)

// Span is one labeled mention found by a named-entity tagger.
type Span struct {
	Text  string
	Label string
}

// Tagger finds person, organisation and date mentions in free text. The
// deterministic extractor seeds player_name from PERSON spans, team from ORG
// spans and season candidates from 4-digit DATE spans.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
}

// HeuristicTagger approximates a statistical tagger with capitalization
// rules: runs of capitalized tokens past the first word become PERSON spans
// unless they resolve to a known team, and bare 4-digit numbers become DATE
// spans.
type HeuristicTagger struct {
	isTeam func(text string) bool
}

// NewHeuristicTagger creates a tagger. isTeam filters capitalized runs that
// are really team mentions; pass nil to disable the filter.
func NewHeuristicTagger(isTeam func(text string) bool) *HeuristicTagger {
	if isTeam == nil {
		isTeam = func(string) bool { return false }
	}
	return &HeuristicTagger{isTeam: isTeam}
}

// Question openers and connective words that are capitalized without naming
// anything.
var taggerStopwords = map[string]bool{
	"who": true, "what": true, "when": true, "which": true, "how": true,
	"show": true, "tell": true, "give": true, "list": true, "compare": true,
	"is": true, "are": true, "the": true, "for": true, "in": true, "of": true,
	"and": true, "gameweek": true, "gw": true, "season": true, "top": true,
	"best": true, "fpl": true,
}

func (t *HeuristicTagger) Tag(_ context.Context, text string) ([]Span, error) {
	tokens := strings.Fields(text)
	var spans []Span
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		mention := strings.Join(run, " ")
		run = nil
		label := LabelPerson
		if t.isTeam(mention) {
			label = LabelOrg
		}
		spans = append(spans, Span{Text: mention, Label: label})
	}

	for i, token := range tokens {
		word := strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			flush()
			continue
		}

		if isYear(word) {
			flush()
			spans = append(spans, Span{Text: word, Label: LabelDate})
			continue
		}

		first, _ := firstRune(word)
		capitalized := unicode.IsUpper(first)
		stopword := taggerStopwords[strings.ToLower(word)]
		// Sentence-initial capitals carry no signal.
		if capitalized && !stopword && i > 0 {
			// Possessives ("Salah's") keep the base name.
			run = append(run, strings.TrimSuffix(word, "'s"))
			continue
		}
		flush()
	}
	flush()

	return spans, nil
}

func isYear(word string) bool {
	if len(word) != 4 {
		return false
	}
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// MockTagger replays fixed spans for testing.
type MockTagger struct {
	Spans []Span
	Err   error
}

func (m *MockTagger) Tag(context.Context, string) ([]Span, error) {
	return m.Spans, m.Err
}

var (
	_ Tagger = (*HeuristicTagger)(nil)
	_ Tagger = (*MockTagger)(nil)
)
