// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns one candidate and its evidence blocks into a typed
// item by asking a language model for a fully keyed item object.
//
// The reply is validated against an embedded JSON Schema once at the
// boundary and converted to types.Item. Evidence enforcement is left to the
// grounding package.
package extract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/internal/schema"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

//go:embed item.schema.json
var itemSchemaJSON []byte

var itemSchema = schema.MustCompile("item.schema.json", itemSchemaJSON)

// ExtractionError reports a failed model call or an unusable reply for one
// candidate. The candidate is dropped; siblings are unaffected.
type ExtractionError struct {
	CandidateID string

	// Stage is "prompt", "call", "decode" or "schema".
	Stage string

	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.CandidateID, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one extraction. Exactly one of Item and Dropped
// is set.
type Outcome struct {
	Item *types.Item

	// Dropped is set when the model declined the candidate.
	Dropped    bool
	DropReason string
}

// Extractor calls the model once per candidate.
type Extractor struct {
	backend llm.Backend
	cfg     types.ExtractionConfig
}

// NewExtractor returns an Extractor calling backend.
func NewExtractor(backend llm.Backend, cfg types.ExtractionConfig) *Extractor {
	return &Extractor{backend: backend, cfg: cfg}
}

// Extract asks the model for an item grounded in evidence. A reply of
// {"drop": true} yields a dropped Outcome. Failures are *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, documentID string, c types.Candidate, evidence []types.EvidenceBlock) (Outcome, error) {
	prompt, err := renderPrompt(c, evidence)
	if err != nil {
		return Outcome{}, &ExtractionError{CandidateID: c.ID, Stage: "prompt", Err: err}
	}
	temp := e.cfg.Temperature
	raw, err := llm.CompleteJSON(ctx, e.backend, llm.Request{
		System:      extractionSystem,
		Prompt:      prompt,
		Temperature: &temp,
	})
	if err != nil {
		return Outcome{}, &ExtractionError{CandidateID: c.ID, Stage: "call", Err: err}
	}
	return Decode(raw, documentID, c, evidence)
}

// Decode converts a model reply into an Outcome. It accepts a bare item, an
// item wrapped as {"item": {...}}, or a drop marker.
func Decode(raw json.RawMessage, documentID string, c types.Candidate, evidence []types.EvidenceBlock) (Outcome, error) {
	fail := func(stage string, err error) (Outcome, error) {
		return Outcome{}, &ExtractionError{CandidateID: c.ID, Stage: stage, Err: err}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fail("decode", eris.New("reply is not a JSON object"))
	}

	var envelope struct {
		Drop       bool            `json:"drop"`
		DropReason string          `json:"drop_reason"`
		Item       json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fail("decode", err)
	}
	if envelope.Drop {
		return Outcome{Dropped: true, DropReason: envelope.DropReason}, nil
	}
	body := trimmed
	if len(bytes.TrimSpace(envelope.Item)) > 0 && envelope.Item[0] == '{' {
		body = envelope.Item
	}

	if err := schema.Validate(itemSchema, body); err != nil {
		return fail("schema", err)
	}
	var it types.Item
	if err := json.Unmarshal(body, &it); err != nil {
		return fail("decode", err)
	}
	normalize(&it, documentID, c, evidence)
	return Outcome{Item: &it}, nil
}

// normalize fills the bookkeeping fields the model does not own.
func normalize(it *types.Item, documentID string, c types.Candidate, evidence []types.EvidenceBlock) {
	it.DocumentID = documentID
	it.CandidateID = c.ID

	kind := types.ItemKind(strings.ToLower(strings.TrimSpace(string(it.Kind))))
	if !kind.Valid() {
		kind = types.ItemClaim
	}
	it.Kind = kind

	if len(it.Grounding.SourceSectionIDs) == 0 {
		it.Grounding.SourceSectionIDs = sectionsOf(it.Grounding.EvidenceBlockIDs, evidence)
	}
	if len(it.Grounding.Anchors) == 0 && len(c.Anchors) > 0 {
		it.Grounding.Anchors = append([]string(nil), c.Anchors...)
	}
	if it.Design.DesignType == "" {
		it.Design.DesignType = "unknown"
	}
	for i := range it.Results.Metrics {
		if it.Results.Metrics[i].Direction == "" {
			it.Results.Metrics[i].Direction = "na"
		}
	}
	it.ConfidenceOverall = clamp01(it.ConfidenceOverall)
	for _, fv := range it.FieldValues() {
		fv.Confidence = clamp01(fv.Confidence)
	}
}

// sectionsOf returns the distinct sections of the cited evidence blocks, in
// evidence order.
func sectionsOf(cited []string, evidence []types.EvidenceBlock) []string {
	want := make(map[string]bool, len(cited))
	for _, id := range cited {
		want[id] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, e := range evidence {
		if !want[e.BlockID] || e.SectionID == "" || seen[e.SectionID] {
			continue
		}
		seen[e.SectionID] = true
		out = append(out, e.SectionID)
	}
	return out
}

func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
