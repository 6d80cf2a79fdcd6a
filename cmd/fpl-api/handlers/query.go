// Package handlers provides HTTP handlers for the FPL graph-RAG API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/observability"
	"github.com/fplanalytics/graphrag/internal/pipeline"
	"github.com/fplanalytics/graphrag/internal/retrieval"
)

// PipelineFactory builds a pipeline for the requested mode, embedding model,
// and result count. Pipelines hold no mutable state, so per-request
// construction over shared dependencies is cheap.
type PipelineFactory func(mode, model string, topK int) *pipeline.Pipeline

// QueryHandler handles question-answering requests.
type QueryHandler struct {
	logger      *observability.Logger
	newPipeline PipelineFactory
	defaults    pipeline.Options
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(logger *observability.Logger, factory PipelineFactory, defaults pipeline.Options) *QueryHandler {
	return &QueryHandler{
		logger:      logger,
		newPipeline: factory,
		defaults:    defaults,
	}
}

// QueryRequestDTO represents the API request for a question.
type QueryRequestDTO struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	Model string `json:"model,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

// QueryResponseDTO represents the API response.
type QueryResponseDTO struct {
	Query    string                   `json:"query"`
	Intent   string                   `json:"intent"`
	Entities entities.Bag             `json:"entities"`
	Evidence []retrieval.EvidenceItem `json:"evidence"`
	Context  string                   `json:"context"`
	Answer   string                   `json:"answer"`
	Cached   bool                     `json:"cached"`
}

// Query handles POST /api/v1/query.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if reqDTO.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required", "")
		return
	}

	mode := reqDTO.Mode
	if mode == "" {
		mode = h.defaults.Mode
	}
	switch mode {
	case pipeline.ModeBaseline, pipeline.ModeSemantic, pipeline.ModeHybrid:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid mode", mode)
		return
	}

	model := reqDTO.Model
	if model == "" {
		model = h.defaults.Model
	}

	topK := reqDTO.TopK
	if topK <= 0 {
		topK = h.defaults.TopK
	}

	result, err := h.newPipeline(mode, model, topK).Process(ctx, reqDTO.Query)
	if err != nil {
		h.logger.Error().Err(err).Str("mode", mode).Msg("Query failed")
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrStoreUnavailable) {
			status = http.StatusBadGateway
		}
		h.writeError(w, status, "Sorry, I could not answer that right now. Please try again.", err.Error())
		return
	}

	respDTO := QueryResponseDTO{
		Query:    result.Query,
		Intent:   result.Intent,
		Entities: result.Entities,
		Evidence: result.Evidence,
		Context:  result.Context,
		Answer:   result.Answer,
		Cached:   result.Cached,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(respDTO); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *QueryHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
