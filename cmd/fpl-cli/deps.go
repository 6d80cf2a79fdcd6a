package main

import (
	"context"
	"fmt"

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

// engine bundles the shared dependencies behind the CLI commands. Commands
// that only classify or extract leave the vector index unloaded.
type engine struct {
	cfg        *config.Config
	logger     *observability.Logger
	graph      graph.Client
	embedder   embedding.Embedder
	generator  genai.Generator
	cache      cache.Client
	lexicon    *lexicon.Lexicon
	indexer    *indexer.Indexer
	index      *retrieval.VectorIndex
	classifier *intent.Classifier
	extractor  *entities.Extractor
	fallback   *entities.GenerativeExtractor
}

// newEngine constructs clients and loads the lexicon. When loadIndex is set
// it also loads node embeddings into the in-memory vector index.
func newEngine(ctx context.Context, cfg *config.Config, logger *observability.Logger, loadIndex bool) (*engine, error) {
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

	lx, err := lexicon.Load(ctx, graphClient, logger)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	e := &engine{
		cfg:        cfg,
		logger:     logger,
		graph:      graphClient,
		embedder:   embedder,
		generator:  generator,
		cache:      cacheClient,
		lexicon:    lx,
		indexer:    indexer.New(logger, graphClient, embedder),
		classifier: intent.NewClassifier(logger, lx, generator),
		extractor:  entities.NewExtractor(logger, lx, nil),
		fallback:   entities.NewGenerativeExtractor(logger, generator),
	}

	if loadIndex {
		e.index, err = e.indexer.LoadIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("load vector index: %w", err)
		}
	}

	return e, nil
}

// pipeline assembles a question-answering pipeline over the shared handles.
func (e *engine) pipeline(mode, model string, topK int) *pipeline.Pipeline {
	structured := retrieval.NewStructuredRetriever(e.logger, e.graph)
	semantic := retrieval.NewSemanticRetriever(e.logger, e.embedder, e.index, e.graph)

	return pipeline.New(e.logger, e.classifier, e.extractor, e.fallback, structured, semantic, e.generator, e.cache, pipeline.Options{
		Mode:         mode,
		Model:        model,
		TopK:         topK,
		QueryTimeout: e.cfg.Retrieval.QueryTimeout,
		CacheResults: e.cfg.Retrieval.CacheResults,
		CacheTTL:     e.cfg.Cache.TTL,
	})
}

// Close releases the cache connection.
func (e *engine) Close() error {
	return e.cache.Close()
}
