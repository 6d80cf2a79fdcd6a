// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fplanalytics/graphrag/cmd/fpl-api/handlers"
	"github.com/fplanalytics/graphrag/cmd/fpl-api/middleware"
	"github.com/fplanalytics/graphrag/internal/config"
	"github.com/fplanalytics/graphrag/internal/observability"
	"github.com/fplanalytics/graphrag/internal/pipeline"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, factory handlers.PipelineFactory) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"fpl-graphrag"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	defaults := pipeline.Options{
		Mode:  cfg.Retrieval.Mode,
		Model: cfg.Embedding.DefaultModel,
		TopK:  cfg.Retrieval.TopK,
	}
	queryHandler := handlers.NewQueryHandler(logger, factory, defaults)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", queryHandler.Query)
	})

	return r
}
