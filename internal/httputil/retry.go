// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// retryable responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// errRetryable marks a response whose status is worth another attempt.
var errRetryable = eris.New("retryable status")

// Retryable reports whether status is HTTP 429 (Too Many Requests) or 503
// (Service Unavailable), which GROBID returns when all workers are busy.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries retryable statuses with
// exponential backoff starting at RetryBaseDelay (10 s, 20 s, 40 s, ...).
//
// When maxRetries is 0 the default (5) is used. Requests with a body must
// set GetBody (http.NewRequest does for in-memory readers) so the body can
// be replayed. Transport errors are returned at once. If the context is
// cancelled during a backoff wait the function returns ctx.Err(). After
// exhausting retries the last retryable response is returned so the caller
// can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var last *http.Response
	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			r, err := cloneRequest(ctx, req)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			resp, err := client.Do(r)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}
			if !Retryable(resp.StatusCode) {
				return resp, nil
			}

			// Keep the body in memory so the final response stays readable.
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			last = resp
			return nil, errRetryable
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.Delay(RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, _ error) {
			zap.L().Warn("service busy, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", last.StatusCode),
				zap.Uint("attempt", n+1),
				zap.Int("max_retries", maxRetries))
		}),
	)
	if err == nil {
		return resp, nil
	}
	if eris.Is(err, errRetryable) && ctx.Err() == nil {
		return last, nil
	}
	return nil, err
}

func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, eris.Wrap(err, "httputil: replay request body")
		}
		r.Body = body
	}
	return r, nil
}
