// Package entities extracts structured query fields (player, team, season,
// gameweek, position, statistic) from free text.
package entities

import "strings"

// Bag is the fixed extraction schema. Every slot is an ordered list and is
// never nil after Normalize; a query may reference several entities of the
// same kind ("Arsenal and Liverpool").
type Bag struct {
	PlayerName []string `json:"player_name"`
	Team       []string `json:"team"`
	Season     []string `json:"season"`
	Gameweek   []string `json:"gameweek"`
	Position   []string `json:"position"`
	Statistic  []string `json:"statistic"`
}

// Normalize replaces nil slots with empty lists and applies the per-slot
// dedup rule.
func (b Bag) Normalize() Bag {
	return Bag{
		PlayerName: dedupSlot(b.PlayerName),
		Team:       dedupSlot(b.Team),
		Season:     dedupSlot(b.Season),
		Gameweek:   dedupSlot(b.Gameweek),
		Position:   dedupSlot(b.Position),
		Statistic:  dedupSlot(b.Statistic),
	}
}

// Merge appends other's slots after b's and re-normalizes, so b's items win
// first-seen order.
func (b Bag) Merge(other Bag) Bag {
	return Bag{
		PlayerName: append(append([]string{}, b.PlayerName...), other.PlayerName...),
		Team:       append(append([]string{}, b.Team...), other.Team...),
		Season:     append(append([]string{}, b.Season...), other.Season...),
		Gameweek:   append(append([]string{}, b.Gameweek...), other.Gameweek...),
		Position:   append(append([]string{}, b.Position...), other.Position...),
		Statistic:  append(append([]string{}, b.Statistic...), other.Statistic...),
	}.Normalize()
}

// IsEmpty reports whether no slot holds any item.
func (b Bag) IsEmpty() bool {
	return len(b.PlayerName) == 0 && len(b.Team) == 0 && len(b.Season) == 0 &&
		len(b.Gameweek) == 0 && len(b.Position) == 0 && len(b.Statistic) == 0
}

// dedupSlot drops case-insensitive duplicates and any item that is a strict
// prefix of another item in the slot, so a bare "2022" is dropped when
// "2022-23" is also present. First-seen order is preserved.
func dedupSlot(items []string) []string {
	out := []string{}
	lowered := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lowered = append(lowered, strings.ToLower(item))
		out = append(out, item)
	}

	kept := []string{}
	for i, item := range out {
		dup := false
		for j := 0; j < i; j++ {
			if lowered[j] == lowered[i] {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		prefix := false
		for j := range out {
			if j == i || lowered[j] == lowered[i] {
				continue
			}
			if strings.HasPrefix(lowered[j], lowered[i]) {
				prefix = true
				break
			}
		}
		if prefix {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
