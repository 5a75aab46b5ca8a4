package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/config"
)

func newEmbeddingServer(t *testing.T, handler func(req jinaRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req jinaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEmbeddingService(endpoint string) *EmbeddingService {
	return NewEmbeddingService(&config.EmbeddingConfig{
		Model:      "jina-embeddings-v3",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Dimensions: 2,
	})
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	srv := newEmbeddingServer(t, func(req jinaRequest) (int, any) {
		assert.Equal(t, taskPassage, req.Task)
		assert.Equal(t, 2, req.Dimensions)
		return http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{2, 2}},
				{"index": 0, "embedding": []float32{1, 1}},
			},
		}
	})

	svc := newTestEmbeddingService(srv.URL)
	got, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, got)
	assert.Equal(t, "jina-embeddings-v3", svc.GetModel())
}

func TestEmbedQueryUsesQueryTask(t *testing.T) {
	srv := newEmbeddingServer(t, func(req jinaRequest) (int, any) {
		assert.Equal(t, taskQuery, req.Task)
		assert.Equal(t, []string{"辦公設備"}, req.Input)
		return http.StatusOK, map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.5, 0.25}}},
		}
	})

	got, err := newTestEmbeddingService(srv.URL).EmbedQuery(context.Background(), "辦公設備")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, got)
}

func TestEmbedReportsAPIError(t *testing.T) {
	srv := newEmbeddingServer(t, func(req jinaRequest) (int, any) {
		return http.StatusUnauthorized, map[string]any{"detail": "invalid api key"}
	})

	_, err := newTestEmbeddingService(srv.URL).Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEmbedRejectsShortResponse(t *testing.T) {
	srv := newEmbeddingServer(t, func(req jinaRequest) (int, any) {
		return http.StatusOK, map[string]any{"data": []map[string]any{}}
	})

	_, err := newTestEmbeddingService(srv.URL).Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected number of embeddings")
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	got, err := newTestEmbeddingService("http://127.0.0.1:1").EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
