package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dgsync/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		APIKey:         "sk-test",
		BaseURL:        server.URL,
		Dimensions:     3,
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, req embeddingRequest) {
	t.Helper()
	resp := map[string]any{"model": req.Model, "usage": map[string]any{"total_tokens": 4 * len(req.Input)}}
	data := make([]map[string]any, len(req.Input))
	// Reverse order to check results are placed by index.
	for i := range req.Input {
		j := len(req.Input) - 1 - i
		data[i] = map[string]any{"index": j, "embedding": []float64{float64(j), 0.5, -0.5}}
	}
	resp["data"] = data
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config ClientConfig
		errMsg string
	}{
		{name: "missing key", config: ClientConfig{}, errMsg: "API key cannot be empty"},
		{name: "bad url", config: ClientConfig{APIKey: "k", BaseURL: "ftp://x"}, errMsg: "invalid base URL"},
		{name: "negative dims", config: ClientConfig{APIKey: "k", Dimensions: -1}, errMsg: "dimensions cannot be negative"},
		{name: "negative retries", config: ClientConfig{APIKey: "k", MaxRetries: -1}, errMsg: "max retries cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			assert.EqualError(t, err, tt.errMsg)
		})
	}

	client, err := NewClient(ClientConfig{APIKey: " k "})
	require.NoError(t, err)
	info, err := client.GetModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, info.Name)
	assert.Equal(t, DefaultDimensions, info.Dimensions)
}

func TestGenerateBatchEmbeddings_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, 3, req.Dimensions)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		writeEmbeddings(t, w, req)
	}, 0)

	results, err := client.GenerateBatchEmbeddings(context.Background(), []string{"a", "b"},
		outbound.EmbeddingOptions{Model: "openai_text_embedding_3_small_1536"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float64{0, 0.5, -0.5}, results[0].Vector)
	assert.Equal(t, []float64{1, 0.5, -0.5}, results[1].Vector)
	assert.Equal(t, 4, results[0].TokenCount)
	assert.Equal(t, DefaultModel, results[0].Model)
}

func TestGenerateEmbedding_Single(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEmbeddings(t, w, req)
	}, 0)

	result, err := client.GenerateEmbedding(context.Background(), "hello", outbound.EmbeddingOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Dimensions)
}

func TestGenerateBatchEmbeddings_RejectsEmptyInput(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) { calls.Add(1) }, 0)

	_, err := client.GenerateBatchEmbeddings(context.Background(), nil, outbound.EmbeddingOptions{})
	assert.Error(t, err)
	_, err = client.GenerateBatchEmbeddings(context.Background(), []string{"ok", "  "}, outbound.EmbeddingOptions{})
	var embErr *outbound.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, outbound.FailureValidation, embErr.Type)
	assert.Zero(t, calls.Load())
}

func TestGenerateBatchEmbeddings_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEmbeddings(t, w, req)
	}, 3)

	results, err := client.GenerateBatchEmbeddings(context.Background(), []string{"a"}, outbound.EmbeddingOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateBatchEmbeddings_HTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		retryable bool
		calls     int32
	}{
		{status: http.StatusUnauthorized, code: "invalid_api_key", calls: 1},
		{status: http.StatusForbidden, code: "access_denied", calls: 1},
		{status: http.StatusBadRequest, code: "invalid_request", calls: 1},
		{status: http.StatusTooManyRequests, code: "rate_limit_exceeded", retryable: true, calls: 3},
		{status: http.StatusBadGateway, code: "server_error", retryable: true, calls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
			}, 2)

			_, err := client.GenerateBatchEmbeddings(context.Background(), []string{"a"}, outbound.EmbeddingOptions{})
			var embErr *outbound.EmbeddingError
			require.ErrorAs(t, err, &embErr)
			assert.Equal(t, tt.code, embErr.Code)
			assert.Equal(t, tt.retryable, embErr.IsRetryable())
			assert.Contains(t, embErr.Message, "nope")
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestGenerateBatchEmbeddings_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "count mismatch", body: `{"data":[]}`},
		{name: "wrong dimensions", body: `{"data":[{"index":0,"embedding":[1,2]}]}`},
		{name: "bad index", body: `{"data":[{"index":4,"embedding":[1,2,3]}]}`},
		{name: "not json", body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}, 0)
			_, err := client.GenerateBatchEmbeddings(context.Background(), []string{"a"}, outbound.EmbeddingOptions{})
			var embErr *outbound.EmbeddingError
			require.ErrorAs(t, err, &embErr)
			assert.Equal(t, "invalid_response", embErr.Code)
		})
	}
}

func TestGenerateBatchEmbeddings_CancelledContext(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GenerateBatchEmbeddings(ctx, []string{"a"}, outbound.EmbeddingOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
