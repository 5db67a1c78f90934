// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the language model used for candidate proposal, field
// extraction and section summaries.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/avast/retry-go/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// Request is a single-turn model request.
type Request struct {
	// System is the system prompt. Empty means none.
	System string

	// Prompt is the user message.
	Prompt string

	// Temperature overrides the backend default when non-nil.
	Temperature *float64
}

// Backend abstracts the model API so tests can supply a fake.
type Backend interface {
	// Complete sends req and returns the concatenated text of the reply.
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// RetryDelay is the base delay between retries of a failed call. Tests
// override this to avoid real sleeps.
var RetryDelay = time.Second

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct {
	client  sdk.Client
	cfg     types.AIConfig
	limiter *rate.Limiter
}

// NewAnthropicBackend creates a backend from cfg. Extra options are passed
// to the SDK client (e.g. option.WithBaseURL in tests).
func NewAnthropicBackend(cfg types.AIConfig, opts ...option.RequestOption) *AnthropicBackend {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	return &AnthropicBackend{
		client:  sdk.NewClient(append(base, opts...)...),
		cfg:     cfg,
		limiter: newLimiter(cfg.RequestsPerSecond),
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Complete sends one request, retrying rate-limit and server errors.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(b.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := sdk.MessageNewParams{
		Model:       sdk.Model(b.cfg.Model),
		MaxTokens:   maxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		Temperature: sdk.Float(b.cfg.Temperature),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	var text string
	err := retry.Do(
		func() error {
			if err := b.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			callCtx, cancel := withTimeout(ctx, b.cfg.Timeout)
			defer cancel()

			msg, err := b.client.Messages.New(callCtx, params)
			if err != nil {
				return err
			}
			text = messageText(msg)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(max(b.cfg.MaxRetries, 0)+1)),
		retry.Delay(RetryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zap.L().Warn("model call failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}
	return text, nil
}

func messageText(msg *sdk.Message) string {
	var b strings.Builder
	for _, c := range msg.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// isTransient reports whether a failed call is worth retrying: rate limits,
// server errors and transport failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
