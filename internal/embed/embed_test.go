// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// embeddingServer answers each input with a vector [len(text), position]
// and returns the data in reverse order to exercise index sorting.
func embeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "test-embed", req.Model)

		var data []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,%d]}`, i, len(req.Input[i]), i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"test-embed","data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`, strings.Join(data, ","))
	}))
}

func TestOpenAIEmbedderBatchesInOrder(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests)
	defer srv.Close()

	e := NewOpenAIEmbedder(types.EmbeddingConfig{
		BaseURL: srv.URL + "/", Model: "test-embed", APIKey: "k", BatchSize: 2,
	}, srv.Client())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0], "vector %d out of order", i)
	}
	assert.Equal(t, int32(3), requests.Load())
}

func init() {
	RetryDelay = time.Millisecond
}

func TestOpenAIEmbedderError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(types.EmbeddingConfig{BaseURL: srv.URL + "/", Model: "test-embed", MaxRetries: 3}, srv.Client())
	_, err := e.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), requests.Load(), "client errors are not retried")
}

func TestOpenAIEmbedderRetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		maxRetries int
		wantErr    bool
		wantCalls  int32
	}{
		{"recovers after server errors", 2, 3, false, 3},
		{"gives up after max retries", 5, 1, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests, failed atomic.Int32
			ok := embeddingServer(t, &requests)
			defer ok.Close()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if failed.Add(1) <= tt.failures {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusServiceUnavailable)
					fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
					return
				}
				ok.Config.Handler.ServeHTTP(w, r)
			}))
			defer srv.Close()

			e := NewOpenAIEmbedder(types.EmbeddingConfig{
				BaseURL: srv.URL + "/", Model: "test-embed", APIKey: "k", MaxRetries: tt.maxRetries,
			}, srv.Client())
			vecs, err := e.Embed(context.Background(), []string{"abc"})
			assert.Equal(t, tt.wantCalls, failed.Load())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, vecs, 1)
			assert.Equal(t, float32(3), vecs[0][0])
		})
	}
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(types.EmbeddingConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, nil)
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
