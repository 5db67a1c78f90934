// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

func init() {
	RetryDelay = 0
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`, false},
		{"plain array", `[1, 2]`, `[1, 2]`, false},
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"surrounding prose", "Here you go: {\"a\": [1]} hope it helps", `{"a": [1]}`, false},
		{"array in prose", "Items: [{\"x\": 1}] done", `[{"x": 1}]`, false},
		{"empty", "   ", "", true},
		{"prose only", "I cannot help with that.", "", true},
		{"truncated", `{"a": [1, 2`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

// scripted returns replies in order and records the requests it saw.
type scripted struct {
	replies []string
	errs    []error
	seen    []Request
}

func (s *scripted) Complete(_ context.Context, req Request) (string, error) {
	i := len(s.seen)
	s.seen = append(s.seen, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no more replies")
}

func TestCompleteJSONFirstAttempt(t *testing.T) {
	b := &scripted{replies: []string{`{"ok": true}`}}
	out, err := CompleteJSON(context.Background(), b, Request{System: "sys", Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(out))
	assert.Len(t, b.seen, 1)
}

func TestCompleteJSONStrictRetry(t *testing.T) {
	b := &scripted{replies: []string{"Sure! Let me think.", `{"ok": true}`}}
	out, err := CompleteJSON(context.Background(), b, Request{System: "sys", Prompt: "p"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(out))

	require.Len(t, b.seen, 2)
	assert.Nil(t, b.seen[0].Temperature)
	assert.Equal(t, "sys\n\n"+StrictInstruction, b.seen[1].System)
	require.NotNil(t, b.seen[1].Temperature)
	assert.Equal(t, 0.0, *b.seen[1].Temperature)
	assert.Equal(t, "p", b.seen[1].Prompt)
}

func TestCompleteJSONGivesUp(t *testing.T) {
	b := &scripted{replies: []string{"nope", "still nope", `{"never": "reached"}`}}
	_, err := CompleteJSON(context.Background(), b, Request{Prompt: "p"})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Attempts)
	assert.Equal(t, "still nope", pe.Raw)
	assert.Len(t, b.seen, 2)
	assert.Equal(t, StrictInstruction, b.seen[1].System)
}

func TestCompleteJSONCallError(t *testing.T) {
	b := &scripted{errs: []error{errors.New("boom")}}
	_, err := CompleteJSON(context.Background(), b, Request{Prompt: "p"})
	require.Error(t, err)
	var pe *ParseError
	assert.False(t, errors.As(err, &pe))
	assert.Len(t, b.seen, 1)
}

const messageReply = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "test-model",
  "content": [{"type": "text", "text": "{\"items\": "}, {"type": "text", "text": "[]}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 3, "output_tokens": 4}
}`

func TestAnthropicBackendComplete(t *testing.T) {
	var calls atomic.Int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageReply)
	}))
	defer srv.Close()

	b := NewAnthropicBackend(types.AIConfig{
		Model: "test-model", APIKey: "k", MaxRetries: 2, MaxTokens: 100, Temperature: 0.2,
	}, option.WithBaseURL(srv.URL+"/"))

	zero := 0.0
	text, err := b.Complete(context.Background(), Request{System: "sys", Prompt: "hello", Temperature: &zero})
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, text)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, float64(0), body["temperature"])
	assert.NotNil(t, body["system"])
}

func TestAnthropicBackendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	b := NewAnthropicBackend(types.AIConfig{Model: "m", APIKey: "k", MaxRetries: 3}, option.WithBaseURL(srv.URL+"/"))
	_, err := b.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
