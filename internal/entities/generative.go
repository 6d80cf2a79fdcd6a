package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fplanalytics/graphrag/internal/genai"
	"github.com/fplanalytics/graphrag/internal/observability"
)

const extractPromptTemplate = `Extract the following entities from the user query.
If an entity is missing, return null.

Entities:
- player_name
- team
- position (map to one of: GK, DEF, MID, FWD)
- gameweek (integer)
- season (year, e.g., 2023-24)
- statistic (map to : goals, assists, saves, minutes, bonus, clean sheets,
  goals conceded, own goals, penalties saved, penalties missed,
  yellow cards, red cards, total points, bps, form, threat,
  creativity, influence)

Return output as valid JSON ONLY.

User Query: "%s"`

// GenerativeExtractor delegates extraction to a language model constrained to
// the Bag JSON schema. Callers may use it instead of, or merged after, the
// deterministic path.
type GenerativeExtractor struct {
	logger    *observability.Logger
	generator genai.Generator
}

func NewGenerativeExtractor(logger *observability.Logger, generator genai.Generator) *GenerativeExtractor {
	return &GenerativeExtractor{
		logger:    logger.WithComponent("entities_genai"),
		generator: generator,
	}
}

// rawBag tolerates the shapes models actually emit: a slot may arrive as a
// string, a number, a list, or null.
type rawBag struct {
	PlayerName json.RawMessage `json:"player_name"`
	Team       json.RawMessage `json:"team"`
	Season     json.RawMessage `json:"season"`
	Gameweek   json.RawMessage `json:"gameweek"`
	Position   json.RawMessage `json:"position"`
	Statistic  json.RawMessage `json:"statistic"`
}

// Extract asks the model for entities and normalizes the reply into a Bag.
func (e *GenerativeExtractor) Extract(ctx context.Context, query string) (Bag, error) {
	reply, err := e.generator.Generate(ctx, fmt.Sprintf(extractPromptTemplate, query))
	if err != nil {
		return Bag{}, fmt.Errorf("generative entity extraction: %w", err)
	}

	var raw rawBag
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return Bag{}, fmt.Errorf("parse generative entities: %w", err)
	}

	bag := Bag{
		PlayerName: coerceSlot(raw.PlayerName),
		Team:       coerceSlot(raw.Team),
		Season:     coerceSlot(raw.Season),
		Gameweek:   coerceSlot(raw.Gameweek),
		Position:   coerceSlot(raw.Position),
		Statistic:  coerceSlot(raw.Statistic),
	}.Normalize()

	e.logger.Debug().Strs("players", bag.PlayerName).Strs("teams", bag.Team).Msg("Generative extraction complete")
	return bag, nil
}

// stripCodeFence removes a surrounding markdown fence, which chat models add
// despite the JSON-only instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func coerceSlot(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return []string{str}
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return []string{strconv.FormatFloat(num, 'f', -1, 64)}
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case float64:
				out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		return out
	}

	return nil
}
