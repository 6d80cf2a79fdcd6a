package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newClassifyCmd creates the classify diagnostic subcommand.
func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query]",
		Short: "Show the classified intent for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)
			query := strings.Join(args, " ")

			eng, err := buildLightEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			tag, err := eng.classifier.Classify(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}

			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{
					"query":  query,
					"intent": string(tag),
				})
			}

			ui.Success("intent: %s", tag)
			return nil
		},
	}
}

// newExtractCmd creates the extract diagnostic subcommand.
func newExtractCmd() *cobra.Command {
	var generative bool

	cmd := &cobra.Command{
		Use:   "extract [query]",
		Short: "Show the entities extracted from a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)
			query := strings.Join(args, " ")

			eng, err := buildLightEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			bag, err := eng.extractor.Extract(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			if generative && bag.IsEmpty() {
				ui.Info("deterministic extraction found nothing, trying generative fallback")
				bag, err = eng.fallback.Extract(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("generative extract: %w", err)
				}
			}

			out, err := json.MarshalIndent(bag, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&generative, "generative", false, "fall back to generative extraction when nothing is found")

	return cmd
}

// buildLightEngine loads dependencies without the vector index. Classification
// and extraction only need the lexicon and the generative fallback.
func buildLightEngine(ctx context.Context) (*engine, error) {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return newEngine(startCtx, cfg, logger, false)
}
