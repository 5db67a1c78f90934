// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidate

import (
	"bytes"
	"context"
	"crypto/sha1"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/internal/schema"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

//go:embed candidate.schema.json
var candidateSchemaJSON []byte

var candidateSchema = schema.MustCompile("candidate.schema.json", candidateSchemaJSON)

const proposeSystem = "You are an information extraction engine for protein biology papers. " +
	"You read ONE section at a time and propose candidate items. Output JSON only."

var proposePromptTmpl = template.Must(template.New("propose").Parse(`TASK: From ONE paper section, extract CANDIDATE ITEMS.
OUTPUT: a JSON array of objects. Return [] if the section has no extractable items.

SCOPE:
- Use ONLY the provided BLOCKS. Do not use outside knowledge.

ITEM KINDS:
- experiment: an empirical measurement, comparison or outcome.
- method: a protocol or procedure without explicit results.
- claim: an assertion stated as a conclusion without a measurement in this section.
- dataset: a named dataset, repository or accession.
- resource: a kit, reagent, software or instrument with a name, version or identifier.
- negative_result: an explicit no-effect, failure or non-detection.

RETURN SCHEMA:
[
  {
    "proposed_item_kind": "experiment|method|claim|dataset|resource|negative_result",
    "label": "short specific name",
    "summary": "1-2 sentences, strictly based on blocks",
    "anchors": ["short anchor phrases"],
    "evidence_block_ids": ["b_xxx"],
    "evidence_hints": ["very short snippet or keyword from a block"],
    "confidence": 0.0
  }
]

CONSTRAINTS:
- evidence_block_ids must be non-empty and use ids from BLOCKS_JSON.
- evidence_hints must be at most 10 words each.
- confidence in [0,1]. Use 0.9 only if explicit.

SECTION_ID: {{.SectionID}}
SECTION_TITLE: {{.Title}}
BLOCKS_JSON:
{{.BlocksJSON}}
`))

type promptBlock struct {
	BlockID string          `json:"block_id"`
	Type    types.BlockType `json:"type"`
	Text    string          `json:"text"`
}

// proposal is one element of the model reply after schema validation.
type proposal struct {
	Label            string   `json:"label"`
	Summary          string   `json:"summary"`
	ProposedItemKind string   `json:"proposed_item_kind"`
	Anchors          []string `json:"anchors"`
	EvidenceBlockIDs []string `json:"evidence_block_ids"`
	EvidenceHints    []string `json:"evidence_hints"`
	Confidence       float64  `json:"confidence"`
}

// Proposer asks a language model for candidate items, one section at a time.
type Proposer struct {
	backend llm.Backend
	cfg     types.ExtractionConfig
}

// NewProposer returns a Proposer calling backend.
func NewProposer(backend llm.Backend, cfg types.ExtractionConfig) *Proposer {
	return &Proposer{backend: backend, cfg: cfg}
}

// CandidateID returns "cand_" followed by the first 12 hex characters of
// sha1(sectionID::label::summary).
func CandidateID(sectionID, label, summary string) string {
	sum := sha1.Sum([]byte(sectionID + "::" + label + "::" + summary))
	return "cand_" + hex.EncodeToString(sum[:])[:12]
}

// Propose returns the candidates the model finds in one section. Only the
// section's glimpse is sent. Elements that fail validation are skipped.
func (p *Proposer) Propose(ctx context.Context, section types.Section, blocks []types.Block) ([]types.Candidate, error) {
	glimpse := Glimpse(blocks)
	if len(glimpse) == 0 {
		return nil, nil
	}

	prompt, err := renderProposePrompt(section, glimpse)
	if err != nil {
		return nil, err
	}
	temp := p.cfg.Temperature
	raw, err := llm.CompleteJSON(ctx, p.backend, llm.Request{
		System:      proposeSystem,
		Prompt:      prompt,
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "candidate: propose for section %s", section.ID)
	}

	elems, err := splitProposals(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "candidate: decode proposals for section %s", section.ID)
	}

	glimpseIDs := make([]string, 0, len(glimpse))
	inGlimpse := make(map[string]bool, len(glimpse))
	for _, b := range glimpse {
		glimpseIDs = append(glimpseIDs, b.ID)
		inGlimpse[b.ID] = true
	}

	var out []types.Candidate
	for i, elem := range elems {
		if err := schema.Validate(candidateSchema, elem); err != nil {
			zap.L().Debug("skipping invalid proposal",
				zap.String("section_id", section.ID), zap.Int("index", i), zap.Error(err))
			continue
		}
		var pr proposal
		if err := json.Unmarshal(elem, &pr); err != nil {
			continue
		}
		out = append(out, toCandidate(section.ID, pr, glimpseIDs, inGlimpse))
	}
	return out, nil
}

// ProposeAll runs Propose over every section that owns blocks, in section
// order. A section whose proposal fails is logged and skipped; the number of
// such sections is returned.
func (p *Proposer) ProposeAll(ctx context.Context, sections []types.Section, blocks []types.Block) ([]types.Candidate, int) {
	bySection := make(map[string][]types.Block)
	for _, b := range blocks {
		bySection[b.SectionID] = append(bySection[b.SectionID], b)
	}

	var (
		out    []types.Candidate
		failed int
	)
	for _, s := range sections {
		sb := bySection[s.ID]
		if len(sb) == 0 {
			continue
		}
		cands, err := p.Propose(ctx, s, sb)
		if err != nil {
			if ctx.Err() != nil {
				return out, failed
			}
			zap.L().Warn("candidate proposal failed",
				zap.String("section_id", s.ID), zap.String("title", s.Title), zap.Error(err))
			failed++
			continue
		}
		zap.L().Debug("proposed candidates", zap.String("section_id", s.ID), zap.Int("count", len(cands)))
		out = append(out, cands...)
	}
	return out, failed
}

func renderProposePrompt(section types.Section, glimpse []types.Block) (string, error) {
	pb := make([]promptBlock, 0, len(glimpse))
	for _, b := range glimpse {
		pb = append(pb, promptBlock{BlockID: b.ID, Type: b.Type, Text: b.Text})
	}
	blocksJSON, err := json.Marshal(pb)
	if err != nil {
		return "", eris.Wrap(err, "candidate: marshal blocks")
	}
	var buf bytes.Buffer
	err = proposePromptTmpl.Execute(&buf, struct {
		SectionID  string
		Title      string
		BlocksJSON string
	}{section.ID, section.Title, string(blocksJSON)})
	if err != nil {
		return "", eris.Wrap(err, "candidate: render prompt")
	}
	return buf.String(), nil
}

// splitProposals accepts a JSON array or an object with an "items" array.
// Any other shape yields no proposals.
func splitProposals(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
		return elems, nil
	case '{':
		var wrapped struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Items, nil
	}
	return nil, nil
}

func toCandidate(sectionID string, pr proposal, glimpseIDs []string, inGlimpse map[string]bool) types.Candidate {
	kind := types.ItemKind(strings.ToLower(strings.TrimSpace(pr.ProposedItemKind)))
	if !kind.Valid() {
		kind = types.ItemClaim
	}

	var sources []string
	for _, id := range pr.EvidenceBlockIDs {
		if inGlimpse[id] {
			sources = append(sources, id)
		}
	}
	if len(sources) == 0 {
		sources = append([]string(nil), glimpseIDs...)
	}

	var hints []string
	for _, h := range pr.EvidenceHints {
		if h = strings.TrimSpace(h); h != "" {
			hints = append(hints, h)
		}
	}

	return types.Candidate{
		ID:               CandidateID(sectionID, pr.Label, pr.Summary),
		SectionID:        sectionID,
		Label:            strings.TrimSpace(pr.Label),
		Summary:          strings.TrimSpace(pr.Summary),
		EvidenceHints:    union(nil, hints),
		ProposedItemKind: kind,
		Anchors:          union(nil, pr.Anchors),
		SourceBlockIDs:   union(nil, sources),
		Confidence:       pr.Confidence,
	}
}
