// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Candidate is a provisional item proposal scoped to one section.
type Candidate struct {
	// ID is "cand_" followed by 12 hex characters of sha1(section::label::summary).
	ID string `json:"candidate_id" yaml:"candidate_id"`

	// SectionID is the section the candidate was proposed from. May be empty
	// after merging.
	SectionID string `json:"section_id,omitempty" yaml:"section_id,omitempty"`

	Label   string `json:"label" yaml:"label"`
	Summary string `json:"summary" yaml:"summary"`

	// EvidenceHints are short phrases used as retrieval queries.
	EvidenceHints []string `json:"evidence_hints" yaml:"evidence_hints"`

	ProposedItemKind ItemKind `json:"proposed_item_kind" yaml:"proposed_item_kind"`

	Anchors        []string `json:"anchors" yaml:"anchors"`
	SourceBlockIDs []string `json:"source_block_ids" yaml:"source_block_ids"`

	// Confidence is between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// EvidenceBlock is the subset of a Block sent to field extraction.
type EvidenceBlock struct {
	BlockID   string    `json:"block_id" yaml:"block_id"`
	SectionID string    `json:"section_id" yaml:"section_id"`
	Type      BlockType `json:"type" yaml:"type"`
	Text      string    `json:"text" yaml:"text"`

	// Score is the best similarity seen for a direct hit; zero for blocks
	// added by neighbor expansion.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}
