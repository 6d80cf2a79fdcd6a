package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModels() map[string]string {
	return map[string]string{
		"minilm": "sentence-transformers/all-minilm-l6-v2",
		"mpnet":  "sentence-transformers/all-mpnet-base-v2",
	}
}

func TestEmbedResolvesRegistryModel(t *testing.T) {
	var gotBody EmbeddingRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		// Out-of-order indices must be restored to input order.
		resp := EmbeddingResponse{
			Data: []EmbeddingData{
				{Index: 1, Embedding: []float32{0.3, 0.4}},
				{Index: 0, Embedding: []float32{0.1, 0.2}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Models: testModels(), Dimension: 2})
	require.NoError(t, err)

	vecs, err := client.Embed(context.Background(), []string{"Salah", "Kane"}, "mpnet")
	require.NoError(t, err)

	assert.Equal(t, "sentence-transformers/all-mpnet-base-v2", gotBody.Model)
	assert.Equal(t, []string{"Salah", "Kane"}, gotBody.Input)

	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])
}

func TestEmbedUnknownModel(t *testing.T) {
	client, err := NewClient(Config{APIKey: "key", Models: testModels()})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"text"}, "bert")
	assert.ErrorContains(t, err, "unknown embedding model")
}

func TestEmbedEmptyInput(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Models: testModels()})
	require.NoError(t, err)

	vecs, err := client.Embed(context.Background(), nil, "mpnet")
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.False(t, called)
}

func TestEmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(EmbeddingResponse{Error: &EmbeddingError{Message: "bad key", Type: "auth_error"}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Models: testModels()})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), []string{"text"}, "minilm")
	assert.ErrorContains(t, err, "bad key")
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{{Index: 0, Embedding: []float32{1, 2, 3}}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL, Models: testModels(), Dimension: 3})
	require.NoError(t, err)

	vec, err := client.EmbedSingle(context.Background(), "Haaland", "minilm")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 3, client.Dimension())
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Models: testModels()})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "key"})
	assert.Error(t, err)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	emb := NewMockEmbedder(8, "minilm", "mpnet")

	a, err := emb.EmbedSingle(context.Background(), "Mohamed Salah", "minilm")
	require.NoError(t, err)
	b, err := emb.EmbedSingle(context.Background(), "Mohamed Salah", "minilm")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
	assert.ElementsMatch(t, []string{"minilm", "mpnet"}, emb.Models())

	// Same text under a different model must land elsewhere in the space.
	c, err := emb.EmbedSingle(context.Background(), "Mohamed Salah", "mpnet")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
