package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/rbright/suzerain/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedBatch(t *testing.T) {
	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		})
	}))
	defer srv.Close()

	e := NewOllama(srv.URL+"/", "nomic")
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	require.Equal(t, ollamaEmbedRequest{Model: "nomic", Input: []string{"a", "b"}}, got)
	require.Equal(t, "ollama:nomic", e.Name())

	vec, err := e.Embed(context.Background(), "a")
	require.Error(t, err, "server always returns two vectors")
	require.Nil(t, vec)
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "").Embed(context.Background(), "x")
	require.ErrorContains(t, err, "status 404")
	require.ErrorContains(t, err, "model not found")
}

func TestOpenAIEmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float64{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float64{1, 0}},
			},
			"usage": map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	e, err := NewOpenAI("sk-test", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	require.Equal(t, "openai:text-embedding-3-small", e.Name())
}

func TestNewRequiresKeys(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "")
	t.Setenv(EnvGeminiKey, "")
	t.Setenv(EnvGoogleKey, "")

	_, err := New(context.Background(), config.EmbeddingConfig{Provider: "openai"})
	require.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "genai"})
	require.ErrorContains(t, err, "GEMINI_API_KEY")

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "word2vec"})
	require.ErrorContains(t, err, "unknown embedding provider")

	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "ollama"})
	require.NoError(t, err)
	require.Equal(t, "ollama:embeddinggemma", e.Name())
}

func TestGenAIKeyPrefersGemini(t *testing.T) {
	t.Setenv(EnvGeminiKey, "g")
	t.Setenv(EnvGoogleKey, "x")
	require.Equal(t, "g", GenAIKey())
	t.Setenv(EnvGeminiKey, "")
	require.Equal(t, "x", GenAIKey())
}

func TestNormalizeTaskType(t *testing.T) {
	require.Equal(t, "SEMANTIC_SIMILARITY", normalizeTaskType(""))
	require.Equal(t, "RETRIEVAL_QUERY", normalizeTaskType("retrieval_query"))
	require.Equal(t, "SEMANTIC_SIMILARITY", normalizeTaskType("bogus"))
}
