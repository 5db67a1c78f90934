// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ItemKind categorizes an extracted item.
type ItemKind string

const (
	ItemExperiment     ItemKind = "experiment"
	ItemMethod         ItemKind = "method"
	ItemClaim          ItemKind = "claim"
	ItemDataset        ItemKind = "dataset"
	ItemResource       ItemKind = "resource"
	ItemNegativeResult ItemKind = "negative_result"
)

// ItemKinds lists every accepted ItemKind in canonical order.
var ItemKinds = []ItemKind{
	ItemExperiment, ItemMethod, ItemClaim, ItemDataset, ItemResource, ItemNegativeResult,
}

// Valid reports whether k is one of the known item kinds.
func (k ItemKind) Valid() bool {
	for _, v := range ItemKinds {
		if k == v {
			return true
		}
	}
	return false
}

// CoverageLevel is an ordinal measure of how much of an item's required
// structure is backed by evidence.
type CoverageLevel string

const (
	CoverageCandidate CoverageLevel = "L0_candidate"
	CoverageProtocol  CoverageLevel = "L1_protocol"
	CoverageDesign    CoverageLevel = "L2_design"
	CoverageResults   CoverageLevel = "L3_results"
)

// Rank returns the ordinal position of c, or -1 for an unknown level.
func (c CoverageLevel) Rank() int {
	switch c {
	case CoverageCandidate:
		return 0
	case CoverageProtocol:
		return 1
	case CoverageDesign:
		return 2
	case CoverageResults:
		return 3
	}
	return -1
}

// FieldValue is an extracted value together with the block ids that support it.
type FieldValue struct {
	// Value is nil when the field is not supported by the evidence.
	Value *string `json:"value" yaml:"value"`

	// Evidence lists supporting block ids.
	Evidence []string `json:"evidence" yaml:"evidence"`

	// Confidence is between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// NewFieldValue returns a populated FieldValue.
func NewFieldValue(value string, confidence float64, evidence ...string) FieldValue {
	return FieldValue{Value: &value, Evidence: evidence, Confidence: confidence}
}

// HasEvidence reports whether the field cites at least one block.
func (f FieldValue) HasEvidence() bool {
	return len(f.Evidence) > 0
}

// String returns the value, or "" when it is null.
func (f FieldValue) String() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// UnmarshalJSON accepts string, number, boolean and null values and stores
// them as text. Objects and arrays are rejected.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value      json.RawMessage `json:"value"`
		Evidence   []string        `json:"evidence"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Evidence = raw.Evidence
	f.Confidence = raw.Confidence
	f.Value = nil

	v := bytes.TrimSpace(raw.Value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		f.Value = &s
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		s := strconv.FormatBool(b)
		f.Value = &s
	case '{', '[':
		return fmt.Errorf("field value must be a scalar, got %s", string(v[:1]))
	default:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		s := n.String()
		f.Value = &s
	}
	return nil
}

// Entities lists the named things an item refers to.
type Entities struct {
	Samples             []FieldValue `json:"samples" yaml:"samples"`
	Assays              []FieldValue `json:"assays" yaml:"assays"`
	ProteinsOrTargets   []FieldValue `json:"proteins_or_targets" yaml:"proteins_or_targets"`
	ChemicalsOrReagents []FieldValue `json:"chemicals_or_reagents" yaml:"chemicals_or_reagents"`
	Instruments         []FieldValue `json:"instruments" yaml:"instruments"`
	Software            []FieldValue `json:"software" yaml:"software"`
}

// Comparison is one side-by-side comparison in an experimental design.
type Comparison struct {
	A FieldValue `json:"a" yaml:"a"`
	B FieldValue `json:"b" yaml:"b"`
}

// Variable is a design variable with its levels.
type Variable struct {
	Name   FieldValue   `json:"name" yaml:"name"`
	Levels []FieldValue `json:"levels" yaml:"levels"`
}

// Design describes the experimental design.
type Design struct {
	// DesignType is one of comparison, optimization, fractionation,
	// enrichment, calibration, validation, application, unknown.
	DesignType  string       `json:"design_type" yaml:"design_type"`
	Comparisons []Comparison `json:"comparisons" yaml:"comparisons"`
	Variables   []Variable   `json:"variables" yaml:"variables"`
}

// Parameter is a named protocol parameter.
type Parameter struct {
	Name  FieldValue `json:"name" yaml:"name"`
	Value FieldValue `json:"value" yaml:"value"`
	Unit  FieldValue `json:"unit" yaml:"unit"`
}

// ProtocolStep is a single step of a method.
type ProtocolStep struct {
	Text       FieldValue  `json:"text" yaml:"text"`
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
}

// Protocol lists the steps of a method.
type Protocol struct {
	Steps []ProtocolStep `json:"steps" yaml:"steps"`
}

// Metric is a single reported measurement.
type Metric struct {
	Name  FieldValue `json:"name" yaml:"name"`
	Value FieldValue `json:"value" yaml:"value"`
	Unit  FieldValue `json:"unit" yaml:"unit"`

	// Direction is one of up, down, same, mixed, na.
	Direction  string     `json:"direction" yaml:"direction"`
	Conditions FieldValue `json:"conditions" yaml:"conditions"`
}

// Results holds measured outcomes.
type Results struct {
	Metrics  []Metric   `json:"metrics" yaml:"metrics"`
	Takeaway FieldValue `json:"takeaway" yaml:"takeaway"`
}

// Grounding declares which blocks underpin an item as a whole.
type Grounding struct {
	EvidenceBlockIDs []string      `json:"evidence_block_ids" yaml:"evidence_block_ids"`
	SourceSectionIDs []string      `json:"source_section_ids" yaml:"source_section_ids"`
	Anchors          []string      `json:"anchors" yaml:"anchors"`
	CoverageLevel    CoverageLevel `json:"coverage_level" yaml:"coverage_level"`
	MissingCritical  []string      `json:"missing_critical,omitempty" yaml:"missing_critical,omitempty"`
}

// Item is a finalized, evidence-grounded record extracted from one candidate.
type Item struct {
	// ID is a UUID.
	ID string `json:"item_id" yaml:"item_id"`

	// DocumentID identifies the source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// CandidateID links back to the candidate the item was extracted from.
	CandidateID string `json:"candidate_id,omitempty" yaml:"candidate_id,omitempty"`

	Kind ItemKind `json:"item_kind" yaml:"item_kind"`

	Label   FieldValue `json:"label" yaml:"label"`
	Summary FieldValue `json:"summary" yaml:"summary"`

	Entities Entities `json:"entities" yaml:"entities"`
	Design   Design   `json:"design" yaml:"design"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Results  Results  `json:"results" yaml:"results"`

	Grounding Grounding `json:"grounding" yaml:"grounding"`

	// Missing names required fields that are not backed by evidence.
	Missing []string `json:"missing" yaml:"missing"`

	ConfidenceOverall float64 `json:"confidence_overall" yaml:"confidence_overall"`
}

// FieldValues returns pointers to every FieldValue in the item, in a fixed
// traversal order. Callers may modify the fields through the pointers.
func (it *Item) FieldValues() []*FieldValue {
	out := []*FieldValue{&it.Label, &it.Summary}
	for _, list := range [][]FieldValue{
		it.Entities.Samples, it.Entities.Assays, it.Entities.ProteinsOrTargets,
		it.Entities.ChemicalsOrReagents, it.Entities.Instruments, it.Entities.Software,
	} {
		for i := range list {
			out = append(out, &list[i])
		}
	}
	for i := range it.Design.Comparisons {
		c := &it.Design.Comparisons[i]
		out = append(out, &c.A, &c.B)
	}
	for i := range it.Design.Variables {
		v := &it.Design.Variables[i]
		out = append(out, &v.Name)
		for j := range v.Levels {
			out = append(out, &v.Levels[j])
		}
	}
	for i := range it.Protocol.Steps {
		s := &it.Protocol.Steps[i]
		out = append(out, &s.Text)
		for j := range s.Parameters {
			p := &s.Parameters[j]
			out = append(out, &p.Name, &p.Value, &p.Unit)
		}
	}
	for i := range it.Results.Metrics {
		m := &it.Results.Metrics[i]
		out = append(out, &m.Name, &m.Value, &m.Unit, &m.Conditions)
	}
	out = append(out, &it.Results.Takeaway)
	return out
}
