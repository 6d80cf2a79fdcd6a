package graph

import (
	"context"
	"strings"
	"sync"
)

// MockClient provides a canned-response graph client for testing. Responses
// are matched by substring of the Cypher text, first registration wins.
type MockClient struct {
	mu       sync.Mutex
	handlers []mockHandler
	failures []mockFailure
	calls    []MockCall
	err      error
}

type mockHandler struct {
	match string
	fn    func(params map[string]any) []Row
}

type mockFailure struct {
	match string
	err   error
}

// MockCall records one executed query.
type MockCall struct {
	Cypher string
	Params map[string]any
}

// NewMockClient creates an empty mock graph client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Respond registers static rows for queries containing match.
func (m *MockClient) Respond(match string, rows []Row) {
	m.RespondFunc(match, func(map[string]any) []Row { return rows })
}

// RespondFunc registers a parameterized responder for queries containing match.
func (m *MockClient) RespondFunc(match string, fn func(params map[string]any) []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, mockHandler{match: match, fn: fn})
}

// Fail makes every subsequent Run return err.
func (m *MockClient) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailOn makes queries containing match return err. Checked before the
// response handlers.
func (m *MockClient) FailOn(match string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, mockFailure{match: match, err: err})
}

// Run returns the first registered response whose match string appears in the
// Cypher text, or no rows when nothing matches.
func (m *MockClient) Run(ctx context.Context, cypher string, params map[string]any) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Cypher: cypher, Params: params})

	if m.err != nil {
		return nil, m.err
	}

	for _, f := range m.failures {
		if strings.Contains(cypher, f.match) {
			return nil, f.err
		}
	}

	for _, h := range m.handlers {
		if strings.Contains(cypher, h.match) {
			return h.fn(params), nil
		}
	}

	return nil, nil
}

// Calls returns all executed queries in order.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ Client = (*MockClient)(nil)
