// Package genai provides the generative-model boundary used for intent
// classification fallback, entity extraction fallback, and answer generation.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Generator produces text from a prompt. Implementations are treated as
// unreliable I/O: the client applies a single bounded retry at this boundary,
// never inside classification or extraction logic.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

// Config holds generative client configuration.
type Config struct {
	APIKey     string
	BaseURL    string // Default: https://openrouter.ai/api/v1
	Model      string // e.g. "meta-llama/llama-3-8b-instruct"
	Timeout    time.Duration
	MaxRetries int // bounded retry on transport failure, default 1
}

// NewClient creates a new generative client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}

	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-3-8b-instruct"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends the prompt and returns the model's reply text. Failed
// attempts are retried at most maxRetries times unless the context is done.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		reply, err := c.generateOnce(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return "", fmt.Errorf("API error: %s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return "", fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// MockGenerator replays scripted replies for testing.
type MockGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	Prompts []string
}

// NewMockGenerator creates a mock that returns replies in order, repeating the
// last one once exhausted.
func NewMockGenerator(replies ...string) *MockGenerator {
	return &MockGenerator{replies: replies}
}

// Fail makes every subsequent Generate return err.
func (m *MockGenerator) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate returns the next scripted reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", fmt.Errorf("no scripted reply")
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

// Ensure implementations satisfy interface.
var (
	_ Generator = (*Client)(nil)
	_ Generator = (*MockGenerator)(nil)
)
