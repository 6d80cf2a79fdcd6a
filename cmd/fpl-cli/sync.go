package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// newSyncEmbeddingsCmd creates the sync-embeddings subcommand.
func newSyncEmbeddingsCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync-embeddings",
		Short: "Embed all graph nodes and store vectors back on them",
		Long: `Sync-embeddings scans every node in the graph, builds a text description
per node label, embeds it under each configured model, and writes the
vectors back as embedding_<model> node properties.

Run this after loading new FPL data, before using semantic retrieval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			eng, err := newEngine(ctx, cfg, logger, false)
			if err != nil {
				return err
			}
			defer eng.Close()

			ui.Info("embedding models: %v", eng.embedder.Models())

			var bar *progressbar.ProgressBar
			started := time.Now()
			count, err := eng.indexer.SyncEmbeddings(ctx, func(done, total int) {
				if outputJSON {
					return
				}
				if bar == nil {
					bar = progressbar.Default(int64(total), "embedding nodes")
				}
				_ = bar.Set(done)
			})
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return fmt.Errorf("sync embeddings: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"nodes_embedded": count,
					"elapsed":        time.Since(started).String(),
				})
			}

			ui.Success("embedded %d nodes in %s", count, time.Since(started).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall timeout for the sync run")

	return cmd
}
