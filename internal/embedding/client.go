// Package embedding provides embedding generation for queries and graph nodes.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// Embedder generates fixed-length vectors for text under a named model.
// Vector length is constant per model name.
type Embedder interface {
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string, model string) ([]float32, error)
	Models() []string
	Dimension() int
}

// Client generates embeddings through an OpenAI-compatible embeddings API.
// A registry maps short model names (the per-node vector property suffix,
// e.g. "mpnet") to full API model identifiers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	registry   map[string]string
	dimension  int
}

// Config holds embedding client configuration.
type Config struct {
	APIKey    string
	BaseURL   string            // Default: https://openrouter.ai/api/v1
	Models    map[string]string // short name -> API model id
	Dimension int               // Default: 768
	Timeout   time.Duration
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one embedding model is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}

	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		registry:   cfg.Models,
		dimension:  cfg.Dimension,
	}, nil
}

// EmbeddingRequest represents a request to generate embeddings.
type EmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// EmbeddingResponse represents the API response.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Error  *EmbeddingError `json:"error,omitempty"`
}

// EmbeddingData contains the embedding vector.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingError represents an API error.
type EmbeddingError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Embed generates embeddings for the given texts under the named model.
func (c *Client) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	apiModel, ok := c.registry[model]
	if !ok {
		return nil, fmt.Errorf("unknown embedding model %q", model)
	}

	reqBody := EmbeddingRequest{
		Input: texts,
		Model: apiModel,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp EmbeddingResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("API error: %s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}

	return embeddings, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string, model string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// Models returns the registered short model names.
func (c *Client) Models() []string {
	names := make([]string, 0, len(c.registry))
	for name := range c.registry {
		names = append(names, name)
	}
	return names
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// MockEmbedder provides a deterministic embedder for testing. Vectors are
// derived from character sums so similar strings land close together.
type MockEmbedder struct {
	dimension int
	models    []string
}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder(dimension int, models ...string) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	if len(models) == 0 {
		models = []string{"mock"}
	}
	return &MockEmbedder{dimension: dimension, models: models}
}

// Embed generates deterministic embeddings.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dimension)
		for j, char := range text + model {
			v[j%m.dimension] += float32(char) / 1000.0
		}
		embeddings[i] = normalize(v)
	}
	return embeddings, nil
}

// EmbedSingle generates a deterministic embedding for a single text.
func (m *MockEmbedder) EmbedSingle(ctx context.Context, text string, model string) ([]float32, error) {
	embeddings, err := m.Embed(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Models returns the mock model names.
func (m *MockEmbedder) Models() []string {
	return m.models
}

// Dimension returns the embedding dimension.
func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}

// Ensure implementations satisfy interface.
var (
	_ Embedder = (*Client)(nil)
	_ Embedder = (*MockEmbedder)(nil)
)
