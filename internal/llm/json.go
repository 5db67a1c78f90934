// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StrictInstruction is appended to the system prompt of the second attempt.
const StrictInstruction = "Return STRICT JSON only. No markdown. No prose."

// ParseError reports a reply that could not be parsed as JSON after every
// attempt.
type ParseError struct {
	Attempts int
	Raw      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model reply is not valid JSON after %d attempts", e.Attempts)
}

type jsonState int

const (
	attempt1 jsonState = iota
	attempt2Strict
	done
	gaveUp
)

// CompleteJSON asks backend for a JSON reply. It runs a two-attempt state
// machine:
//
//	attempt1 -> parse fail -> attempt2Strict -> parse fail -> gave up
//
// The strict attempt appends StrictInstruction to the system prompt and
// forces temperature 0. A call error ends the machine immediately; a reply
// that never parses yields a *ParseError.
func CompleteJSON(ctx context.Context, backend Backend, req Request) (json.RawMessage, error) {
	var (
		state  = attempt1
		out    json.RawMessage
		raw    string
		tries  int
		cur    = req
		zero   = 0.0
		reqErr error
	)
	for state != done && state != gaveUp {
		tries++
		raw, reqErr = backend.Complete(ctx, cur)
		if reqErr != nil {
			return nil, eris.Wrapf(reqErr, "llm: attempt %d", tries)
		}

		parsed, err := ParseJSON(raw)
		switch {
		case err == nil:
			out = parsed
			state = done
		case state == attempt1:
			zap.L().Warn("model reply is not JSON, retrying with strict instruction", zap.Int("reply_len", len(raw)))
			cur = req
			cur.System = strings.TrimSpace(req.System + "\n\n" + StrictInstruction)
			cur.Temperature = &zero
			state = attempt2Strict
		default:
			state = gaveUp
		}
	}
	if state == gaveUp {
		return nil, &ParseError{Attempts: tries, Raw: raw}
	}
	return out, nil
}

// ParseJSON parses JSON from model output, recovering from markdown code
// fences and surrounding prose.
func ParseJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, eris.New("llm: empty reply")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && json.Valid([]byte(c)) {
			return json.RawMessage(c), nil
		}
	}
	return nil, eris.New("llm: reply contains no JSON value")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate returns the span from the first '{' or '[' to the
// last matching closing character.
func extractJSONCandidate(content string) string {
	objectStart := strings.Index(content, "{")
	arrayStart := strings.Index(content, "[")

	start, closeChar := -1, ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(content, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
