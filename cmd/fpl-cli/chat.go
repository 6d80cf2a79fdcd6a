package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fplanalytics/graphrag/internal/pipeline"
)

// newChatCmd creates the interactive chat subcommand.
func newChatCmd() *cobra.Command {
	var (
		mode    string
		model   string
		topK    int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with the FPL knowledge graph",
		Long: `Chat starts an interactive loop. Each question runs through intent
classification, entity extraction, graph retrieval, and answer generation.

Type "quit" or "exit" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)

			stop := ui.Spinner("connecting to the knowledge graph...")
			eng, err := buildEngine(cmd.Context())
			stop()
			if err != nil {
				return err
			}
			defer eng.Close()

			pipe := eng.pipeline(resolveMode(mode), resolveModel(model), resolveTopK(topK))

			ui.Info("FPL assistant ready (%s mode). Ask away.", resolveMode(mode))
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("you> ")
				if !scanner.Scan() {
					break
				}
				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				if query == "quit" || query == "exit" {
					break
				}

				answerOne(cmd.Context(), ui, pipe, query, verbose)
			}

			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "retrieval mode: baseline, semantic, or hybrid (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model name (default from config)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "semantic result count (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show intent, entities, and evidence")

	return cmd
}

// newAskCmd creates the one-shot question subcommand.
func newAskCmd() *cobra.Command {
	var (
		mode    string
		model   string
		topK    int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(outputJSON, noColor)
			query := strings.Join(args, " ")

			stop := ui.Spinner("connecting to the knowledge graph...")
			eng, err := buildEngine(cmd.Context())
			stop()
			if err != nil {
				return err
			}
			defer eng.Close()

			pipe := eng.pipeline(resolveMode(mode), resolveModel(model), resolveTopK(topK))
			return answerOne(cmd.Context(), ui, pipe, query, verbose)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "retrieval mode: baseline, semantic, or hybrid (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "embedding model name (default from config)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "semantic result count (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show intent, entities, and evidence")

	return cmd
}

// answerOne processes a single query and prints the result.
func answerOne(ctx context.Context, ui *UI, pipe *pipeline.Pipeline, query string, verbose bool) error {
	stop := ui.Spinner("scouting the database...")
	result, err := pipe.Process(ctx, query)
	stop()
	if err != nil {
		ui.Error("Sorry, I could not answer that: %v", err)
		if outputJSON {
			return err
		}
		return nil
	}

	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if verbose {
		ui.Dim("intent: %s", result.Intent)
		if b, err := json.Marshal(result.Entities); err == nil {
			ui.Dim("entities: %s", b)
		}
		ui.Dim("evidence: %d items (cached: %v)", len(result.Evidence), result.Cached)
		for _, item := range result.Evidence {
			ui.Dim("  [%s]", item.Source)
		}
	}

	ui.Answer(result.Answer)
	return nil
}

// buildEngine loads full dependencies, including the vector index.
func buildEngine(ctx context.Context) (*engine, error) {
	startCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return newEngine(startCtx, cfg, logger, true)
}

func resolveMode(mode string) string {
	if mode != "" {
		return mode
	}
	return cfg.Retrieval.Mode
}

func resolveModel(model string) string {
	if model != "" {
		return model
	}
	return cfg.Embedding.DefaultModel
}

func resolveTopK(topK int) int {
	if topK > 0 {
		return topK
	}
	return cfg.Retrieval.TopK
}
