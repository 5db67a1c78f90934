// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns block text into vectors through an OpenAI-compatible
// embeddings API.
package embed

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// Embedder maps texts to vectors. Vectors are returned in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// RetryDelay is the base backoff between attempts. Tests shorten it.
var RetryDelay = 2 * time.Second

// OpenAIEmbedder calls the embeddings endpoint of an OpenAI-compatible API
// such as OpenRouter.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	batchSize  int
	maxRetries int
	limiter    *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder from cfg. httpClient may be nil.
func NewOpenAIEmbedder(cfg types.EmbeddingConfig, httpClient *http.Client) *OpenAIEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Retries are ours so they share the rate limiter.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: max(cfg.MaxRetries, 0),
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Embed embeds texts in batches. A failed batch fails the whole call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	resp, err := retry.DoWithData(
		func() (*openai.CreateEmbeddingResponse, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
			return e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
				Model: openai.EmbeddingModel(e.model),
			})
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)+1),
		retry.Delay(RetryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("embedding call failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "embed: request %d texts", len(batch))
	}
	if len(resp.Data) != len(batch) {
		return nil, eris.Errorf("embed: got %d vectors for %d texts", len(resp.Data), len(batch))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		vecs[i] = v
	}
	zap.L().Debug("embedded batch", zap.Int("texts", len(batch)), zap.Int("dims", dims(vecs)))
	return vecs, nil
}

// isTransient reports whether a failed call is worth retrying: rate limits,
// server errors and transport failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

func dims(vecs [][]float32) int {
	if len(vecs) == 0 {
		return 0
	}
	return len(vecs[0])
}
