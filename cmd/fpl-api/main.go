// Package main provides the FPL graph-RAG API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fplanalytics/graphrag/internal/cache"
	"github.com/fplanalytics/graphrag/internal/config"
	"github.com/fplanalytics/graphrag/internal/embedding"
	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/genai"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/indexer"
	"github.com/fplanalytics/graphrag/internal/intent"
	"github.com/fplanalytics/graphrag/internal/lexicon"
	"github.com/fplanalytics/graphrag/internal/observability"
	"github.com/fplanalytics/graphrag/internal/pipeline"
	"github.com/fplanalytics/graphrag/internal/retrieval"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "fpl-graphrag",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("graph", cfg.Graph.URL).
		Str("mode", cfg.Retrieval.Mode).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting FPL graph-RAG API")

	factory, err := buildPipelineFactory(logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	router := NewRouter(logger, cfg, factory)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

// buildPipelineFactory constructs the shared engine dependencies once and
// returns a factory that assembles a pipeline per requested mode and model.
func buildPipelineFactory(logger *observability.Logger, cfg *config.Config) (func(mode, model string, topK int) *pipeline.Pipeline, error) {
	graphClient, err := graph.NewHTTPClient(graph.Config{
		URL:      cfg.Graph.URL,
		Database: cfg.Graph.Database,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Timeout:  cfg.Graph.QueryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("graph client: %w", err)
	}

	embedder, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Models:    cfg.Embedding.Models,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	generator, err := genai.NewClient(genai.Config{
		APIKey:     cfg.Generative.APIKey,
		BaseURL:    cfg.Generative.BaseURL,
		Model:      cfg.Generative.Model,
		Timeout:    cfg.Generative.Timeout,
		MaxRetries: cfg.Generative.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("generative client: %w", err)
	}

	var cacheClient cache.Client
	if cfg.Cache.Driver == "redis" {
		cacheClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
	} else {
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Graph.QueryTimeout*4)
	defer cancel()

	lx, err := lexicon.Load(startCtx, graphClient, logger)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	index, err := indexer.New(logger, graphClient, embedder).LoadIndex(startCtx)
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	logger.Info().Int("nodes", index.Len()).Msg("Vector index loaded")

	classifier := intent.NewClassifier(logger, lx, generator)
	extractor := entities.NewExtractor(logger, lx, nil)
	fallback := entities.NewGenerativeExtractor(logger, generator)
	structured := retrieval.NewStructuredRetriever(logger, graphClient)
	semantic := retrieval.NewSemanticRetriever(logger, embedder, index, graphClient)

	return func(mode, model string, topK int) *pipeline.Pipeline {
		return pipeline.New(logger, classifier, extractor, fallback, structured, semantic, generator, cacheClient, pipeline.Options{
			Mode:         mode,
			Model:        model,
			TopK:         topK,
			QueryTimeout: cfg.Retrieval.QueryTimeout,
			CacheResults: cfg.Retrieval.CacheResults,
			CacheTTL:     cfg.Cache.TTL,
		})
	}, nil
}
