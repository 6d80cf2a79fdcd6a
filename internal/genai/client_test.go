package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content string) chatResponse {
	return chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}}
}

func TestGenerateReturnsReply(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(chatReply("player_stats"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key-123", BaseURL: srv.URL, Model: "meta-llama/llama-3-8b-instruct"})
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "Classify this query")
	require.NoError(t, err)

	assert.Equal(t, "player_stats", reply)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "meta-llama/llama-3-8b-instruct", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "Classify this query", gotBody.Messages[0].Content)
}

func TestGenerateRetriesOnFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(chatReply("recovered"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 2, attempts)
}

func TestGenerateRetriesAreBounded(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(chatResponse{Error: &chatError{Message: "overloaded", Type: "server_error"}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, MaxRetries: 1})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, 2, attempts)
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Generate(ctx, "hello")
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello")
	assert.ErrorContains(t, err, "no choices")
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestMockGeneratorScriptedReplies(t *testing.T) {
	gen := NewMockGenerator("first", "second")

	for _, want := range []string{"first", "second", "second"} {
		reply, err := gen.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, want, reply)
	}

	assert.Equal(t, []string{"p", "p", "p"}, gen.Prompts)

	boom := errors.New("boom")
	gen.Fail(boom)
	_, err := gen.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, boom)
}
