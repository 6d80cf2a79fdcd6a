package retrieval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fplanalytics/graphrag/internal/graph"
)

// EvidenceItem is one fused fact: a flat field/value record tagged with the
// source it came from (a battery query name, an enrichment sub-key, or a
// node label).
type EvidenceItem struct {
	Source string         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// Combine merges the three retrieval outputs into a deduplicated evidence
// list. Insertion order is structured, then hybrid, then semantic, and is a
// contract: prompt construction relies on it for which facts appear first.
// Items dedup on (primary key, source), so a player's overview row and form
// row both survive. Raw semantic hits are inserted only if their key is not
// already used by an earlier source.
func Combine(structured map[string][]graph.Row, hybrid []Enriched, semantic []Hit) []EvidenceItem {
	var items []EvidenceItem
	seen := make(map[string]bool)
	usedKeys := make(map[string]bool)

	add := func(source string, fields map[string]any) {
		key := dedupKey(fields)
		composite := key + "\x00" + source
		if seen[composite] {
			return
		}
		seen[composite] = true
		usedKeys[key] = true
		items = append(items, EvidenceItem{Source: source, Fields: fields})
	}

	// Structured rows, grouped by query name, in battery order.
	for _, name := range orderedQueryNames(structured) {
		for _, row := range structured[name] {
			add(name, row)
		}
	}

	// Hybrid wrappers: each named sub-result is unpacked individually. Lists
	// expand to one item per element, single records become one item.
	for _, wrapper := range hybrid {
		for _, subKey := range sortedKeys(wrapper.Data) {
			switch v := wrapper.Data[subKey].(type) {
			case nil:
			case []graph.Row:
				for _, row := range v {
					add(subKey, row)
				}
			case graph.Row:
				if len(v) > 0 {
					add(subKey, v)
				}
			case map[string]any:
				if len(v) > 0 {
					add(subKey, v)
				}
			default:
				add(subKey, map[string]any{subKey: v})
			}
		}
	}

	// Raw semantic hits fill remaining gaps only.
	for _, hit := range semantic {
		if usedKeys[dedupKey(hit.Props)] {
			continue
		}
		add(hit.Label, hit.Props)
	}

	return items
}

// dedupKey picks an item's identity: an explicit player-name field, else a
// generic name field, else a stable synthetic key from the full field set.
func dedupKey(fields map[string]any) string {
	for _, prop := range []string{"player_name", "player", "name", "team"} {
		if v, ok := fields[prop]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	if v, ok := fields["node_id"]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return renderFields(fields)
}

// orderedQueryNames sorts battery query names by their numeric suffix, so
// "player_stats_10" follows "player_stats_9" rather than "player_stats_1".
func orderedQueryNames(m map[string][]graph.Row) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, ni := splitQueryName(names[i])
		pj, nj := splitQueryName(names[j])
		if pi != pj {
			return pi < pj
		}
		return ni < nj
	})
	return names
}

func splitQueryName(name string) (string, int) {
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name, 0
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return name, 0
	}
	return name[:idx], n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EmptyContext is used when fusion produced no evidence at all.
const EmptyContext = "No specific data found in the Knowledge Graph for this query."

// SerializeContext renders the evidence list into the newline-delimited
// context block handed to the answer generator. Field order inside an item is
// sorted for reproducibility.
func SerializeContext(items []EvidenceItem) string {
	if len(items) == 0 {
		return EmptyContext
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("[%s] %s", item.Source, renderFields(item.Fields)))
	}
	return strings.Join(lines, "\n")
}

func renderFields(fields map[string]any) string {
	parts := make([]string, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	return strings.Join(parts, ", ")
}
