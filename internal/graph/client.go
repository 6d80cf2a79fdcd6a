// Package graph provides access to the Neo4j knowledge graph over its HTTP
// transactional Cypher endpoint.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrStoreUnavailable indicates the graph store could not be reached.
var ErrStoreUnavailable = errors.New("graph store unavailable")

// Row is a flat record returned by a Cypher query.
type Row map[string]any

// Str returns the named column as a string, or "" when absent.
func (r Row) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the named column as a float64, or 0 when absent.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns the named column as an int, or 0 when absent.
func (r Row) Int(key string) int {
	return int(r.Float(key))
}

// Client runs parameterized Cypher queries against the knowledge graph.
// Parameters with nil values carry wildcard semantics; the query's own WHERE
// logic treats them as "match anything".
type Client interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error)
}

// HTTPClient implements Client using the Neo4j HTTP transactional endpoint.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	database   string
	username   string
	password   string
}

// Config holds graph client configuration.
type Config struct {
	URL      string // e.g. http://localhost:7474
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// NewHTTPClient creates a new graph client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graph URL is required")
	}

	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.URL,
		database:   cfg.Database,
		username:   cfg.Username,
		password:   cfg.Password,
	}, nil
}

type txRequest struct {
	Statements []txStatement `json:"statements"`
}

type txStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type txResponse struct {
	Results []txResult `json:"results"`
	Errors  []txError  `json:"errors"`
}

type txResult struct {
	Columns []string `json:"columns"`
	Data    []txRow  `json:"data"`
}

type txRow struct {
	Row []any `json:"row"`
}

type txError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run executes a single Cypher statement and returns its rows.
func (c *HTTPClient) Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error) {
	reqBody := txRequest{
		Statements: []txStatement{{Statement: cypher, Parameters: params}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/db/%s/tx/commit", c.baseURL, c.database)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrStoreUnavailable, resp.StatusCode, string(body))
	}

	var txResp txResponse
	if err := json.Unmarshal(body, &txResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(txResp.Errors) > 0 {
		e := txResp.Errors[0]
		return nil, fmt.Errorf("cypher error: %s (%s)", e.Message, e.Code)
	}

	if len(txResp.Results) == 0 {
		return nil, nil
	}

	result := txResp.Results[0]
	rows := make([]Row, 0, len(result.Data))
	for _, d := range result.Data {
		row := make(Row, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(d.Row) {
				row[col] = d.Row[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Ensure implementation satisfies interface.
var _ Client = (*HTTPClient)(nil)
