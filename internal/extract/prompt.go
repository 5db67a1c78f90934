// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"text/template"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

const extractionSystem = "You are a strict, evidence-grounded extractor for protein biology papers. " +
	"The EVIDENCE blocks are the only source of truth. Output JSON only."

// extractionPromptTmpl renders one candidate and its evidence blocks. The
// candidate is serialized as JSON so its text cannot break the layout.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`TASK: Produce ONE finalized ITEM from the provided EVIDENCE.

ABSOLUTE RULES:
1) Use ONLY the EVIDENCE text. The CANDIDATE is a hint, not evidence.
2) Every non-null field value must cite at least one evidence block id.
3) If the evidence does not support an item, return exactly:
   {"drop": true, "drop_reason": "..."}
4) Summaries must be concise. Do not copy large spans of text.
5) Evidence arrays contain ONLY block ids such as "b_0a1b2c3d4e5f", never raw text.

FIELD VALUE SHAPE: {"value": "string|null", "evidence": ["b_..."], "confidence": 0.0}

SCHEMA:
{
  "item_id": "string",
  "item_kind": "experiment|method|claim|dataset|resource|negative_result",
  "label": FIELD,
  "summary": FIELD,
  "entities": {"samples": [FIELD], "assays": [FIELD], "proteins_or_targets": [FIELD],
               "chemicals_or_reagents": [FIELD], "instruments": [FIELD], "software": [FIELD]},
  "design": {"design_type": "comparison|optimization|fractionation|enrichment|calibration|validation|application|unknown",
             "comparisons": [{"a": FIELD, "b": FIELD}],
             "variables": [{"name": FIELD, "levels": [FIELD]}]},
  "protocol": {"steps": [{"text": FIELD, "parameters": [{"name": FIELD, "value": FIELD, "unit": FIELD}]}]},
  "results": {"metrics": [{"name": FIELD, "value": FIELD, "unit": FIELD,
                           "direction": "up|down|same|mixed|na", "conditions": FIELD}],
              "takeaway": FIELD},
  "grounding": {"evidence_block_ids": ["b_..."], "source_section_ids": ["s_..."], "anchors": ["string"],
                "coverage_level": "L0_candidate|L1_protocol|L2_design|L3_results"},
  "confidence_overall": 0.0
}

CLASSIFICATION:
- experiment: an assay or measurement plus an outcome or evaluation.
- method: procedural steps, parameters or reagents without outcomes.
- claim: an assertion without a described measurement.
- dataset: a named dataset, repository or accession.
- resource: a named kit, instrument, software, version or identifier.
- negative_result: an explicit no effect, failure or non-detection.

BEFORE OUTPUT:
- grounding.evidence_block_ids MUST list every block id you used.
- grounding.source_section_ids lists the section ids shown in the evidence headers.
- If you cannot populate grounding.evidence_block_ids, drop.

CANDIDATE_JSON (NOT EVIDENCE):
{{.CandidateJSON}}

EVIDENCE (ONLY SOURCE OF TRUTH):
{{range .Evidence}}[{{.BlockID}} | {{.SectionID}} | {{.Type}}]
{{.Text}}

{{end}}`))

// promptCandidate is the part of a Candidate shown to the model.
type promptCandidate struct {
	CandidateID string         `json:"candidate_id"`
	ItemKind    types.ItemKind `json:"item_kind"`
	Label       string         `json:"label"`
	Summary     string         `json:"summary"`
	Anchors     []string       `json:"anchors"`
	Sections    []string       `json:"predicted_source_sections"`
}

func renderPrompt(c types.Candidate, evidence []types.EvidenceBlock) (string, error) {
	pc := promptCandidate{
		CandidateID: c.ID,
		ItemKind:    c.ProposedItemKind,
		Label:       c.Label,
		Summary:     c.Summary,
		Anchors:     c.Anchors,
		Sections:    []string{},
	}
	if c.SectionID != "" {
		pc.Sections = []string{c.SectionID}
	}
	candJSON, err := json.Marshal(pc)
	if err != nil {
		return "", eris.Wrap(err, "extract: marshal candidate")
	}

	var buf bytes.Buffer
	err = extractionPromptTmpl.Execute(&buf, struct {
		CandidateJSON string
		Evidence      []types.EvidenceBlock
	}{string(candJSON), evidence})
	if err != nil {
		return "", eris.Wrap(err, "extract: render prompt")
	}
	return buf.String(), nil
}
