// Package main provides the FPL graph-RAG CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fplanalytics/graphrag/internal/config"
	"github.com/fplanalytics/graphrag/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "fpl-cli",
	Short: "FPL graph-RAG CLI for questions, diagnostics, and embedding sync",
	Long: `FPL graph-RAG CLI answers Fantasy Premier League questions from a
Neo4j knowledge graph.

Use this tool to:
- Chat interactively or ask one-shot questions
- Inspect intent classification and entity extraction for a query
- Sync node embeddings into the graph for semantic retrieval

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		logLevel := "warn"
		if outputJSON {
			logFormat = "json"
			logLevel = cfg.Observability.LogLevel
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       logLevel,
			Format:      logFormat,
			ServiceName: "fpl-cli",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newSyncEmbeddingsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("fpl-cli v0.3.0")
		},
	}
}
