// Package indexer computes and stores per-node embedding vectors and loads
// them into the in-memory vector index used for semantic search.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/fplanalytics/graphrag/internal/embedding"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/observability"
	"github.com/fplanalytics/graphrag/internal/retrieval"
)

const nodeScanQuery = `MATCH (n)
RETURN toString(id(n)) AS id, labels(n)[0] AS label, properties(n) AS props`

// Indexer syncs node embeddings into the graph and loads the vector index.
type Indexer struct {
	logger   *observability.Logger
	client   graph.Client
	embedder embedding.Embedder
}

func New(logger *observability.Logger, client graph.Client, embedder embedding.Embedder) *Indexer {
	return &Indexer{
		logger:   logger.WithComponent("indexer"),
		client:   client,
		embedder: embedder,
	}
}

// BuildNodeText renders the text that gets embedded for a node. Unknown
// labels produce an empty string and are skipped by the sync.
func BuildNodeText(label string, props map[string]any) string {
	get := func(key string) any {
		if v, ok := props[key]; ok && v != nil {
			return v
		}
		return ""
	}

	switch label {
	case "Season":
		return fmt.Sprintf("Season %v", get("season_name"))
	case "Gameweek":
		return fmt.Sprintf("Gameweek %v of season %v", get("GW_number"), get("season"))
	case "Fixture":
		return fmt.Sprintf("Fixture %v in season %v kickoff time %v", get("fixture_number"), get("season"), get("kickoff_time"))
	case "Team":
		return fmt.Sprintf("Team %v", get("name"))
	case "Position":
		return fmt.Sprintf("Position %v", get("name"))
	case "Player":
		return fmt.Sprintf("%v plays as %v", get("player_name"), get("position_name"))
	}
	return ""
}

// SyncEmbeddings embeds every node's text with every registered model and
// writes the vectors back as embedding_<model> properties. progress, when
// non-nil, is called after each node. Returns the number of nodes embedded.
func (ix *Indexer) SyncEmbeddings(ctx context.Context, progress func(done, total int)) (int, error) {
	rows, err := ix.client.Run(ctx, nodeScanQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("scan nodes: %w", err)
	}

	embedded := 0
	for i, row := range rows {
		label := row.Str("label")
		props, _ := row["props"].(map[string]any)
		text := BuildNodeText(label, props)
		if text == "" {
			if progress != nil {
				progress(i+1, len(rows))
			}
			continue
		}

		for _, model := range ix.embedder.Models() {
			vec, err := ix.embedder.EmbedSingle(ctx, text, model)
			if err != nil {
				return embedded, fmt.Errorf("embed node %s with %s: %w", row.Str("id"), model, err)
			}

			cypher := fmt.Sprintf(`MATCH (n) WHERE toString(id(n)) = $id
SET n.embedding_%s = $vector`, model)
			if _, err := ix.client.Run(ctx, cypher, map[string]any{
				"id":     row.Str("id"),
				"vector": vec,
			}); err != nil {
				return embedded, fmt.Errorf("store vector for node %s: %w", row.Str("id"), err)
			}
		}

		embedded++
		if progress != nil {
			progress(i+1, len(rows))
		}
	}

	ix.logger.Info().Int("nodes", embedded).Msg("Node embeddings synced")
	return embedded, nil
}

// LoadIndex scans all nodes and builds the vector index from their stored
// embedding_<model> properties. Nodes without any vector are skipped; they
// are not searchable.
func (ix *Indexer) LoadIndex(ctx context.Context) (*retrieval.VectorIndex, error) {
	rows, err := ix.client.Run(ctx, nodeScanQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}

	nodes := make([]retrieval.IndexedNode, 0, len(rows))
	for _, row := range rows {
		props, _ := row["props"].(map[string]any)
		if props == nil {
			continue
		}

		vectors := make(map[string][]float32)
		clean := make(map[string]any, len(props))
		for key, value := range props {
			model, isVector := strings.CutPrefix(key, "embedding_")
			if !isVector {
				clean[key] = value
				continue
			}
			if vec := toVector(value); vec != nil {
				vectors[model] = vec
			}
		}
		if len(vectors) == 0 {
			continue
		}

		nodes = append(nodes, retrieval.IndexedNode{
			Label:   row.Str("label"),
			NodeID:  row.Str("id"),
			Props:   clean,
			Vectors: vectors,
		})
	}

	idx := retrieval.NewVectorIndex()
	idx.Replace(nodes)

	ix.logger.Info().Int("nodes", idx.Len()).Msg("Vector index loaded")
	return idx, nil
}

// toVector converts a JSON-decoded property value into a vector.
func toVector(value any) []float32 {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	vec := make([]float32, len(list))
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil
		}
		vec[i] = float32(f)
	}
	return vec
}
