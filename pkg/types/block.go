// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BlockType classifies the content of a Block.
type BlockType string

const (
	BlockTitle         BlockType = "title"
	BlockSectionTitle  BlockType = "section_title"
	BlockAbstract      BlockType = "abstract"
	BlockParagraph     BlockType = "paragraph"
	BlockTableLabel    BlockType = "table_label"
	BlockTableBody     BlockType = "table_body"
	BlockFigureCaption BlockType = "figure_caption"
	BlockEquation      BlockType = "equation"
	BlockBackMatter    BlockType = "back_matter"
)

// Chunk records the position of a block within a passage that was split at
// sentence boundaries.
type Chunk struct {
	// Index is the zero-based chunk position.
	Index int `json:"index" yaml:"index"`

	// Total is the number of chunks the passage was split into.
	Total int `json:"total" yaml:"total"`
}

// Provenance is a page location passed through from the conversion service.
type Provenance struct {
	Page int       `json:"page" yaml:"page"`
	BBox []float64 `json:"bbox,omitempty" yaml:"bbox,omitempty"`
}

// BlockSource describes where a block came from in the document tree.
type BlockSource struct {
	// Anchor is the node's xml:id, reference, or structural path.
	Anchor string `json:"anchor" yaml:"anchor"`

	// Kind is the raw node kind reported by the parser (e.g. "p", "figure").
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Label is a raw label such as "Figure 2" or "Table 1".
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// PromotedFrom is set when a heuristic reclassified the node
	// (e.g. "paragraph" for a paragraph promoted to table_body).
	PromotedFrom string `json:"promoted_from,omitempty" yaml:"promoted_from,omitempty"`

	// Prov lists page locations, when the converter supplies them.
	Prov []Provenance `json:"prov,omitempty" yaml:"prov,omitempty"`
}

// BlockFlags carries the noise classification and content hints for a block.
type BlockFlags struct {
	IsEmpty               bool `json:"is_empty,omitempty" yaml:"is_empty,omitempty"`
	IsPunctOnly           bool `json:"is_punct_only,omitempty" yaml:"is_punct_only,omitempty"`
	IsNumericOnly         bool `json:"is_numeric_only,omitempty" yaml:"is_numeric_only,omitempty"`
	IsDashOnly            bool `json:"is_dash_only,omitempty" yaml:"is_dash_only,omitempty"`
	IsShort               bool `json:"is_short,omitempty" yaml:"is_short,omitempty"`
	IsNoise               bool `json:"is_noise,omitempty" yaml:"is_noise,omitempty"`
	IsExperimentCandidate bool `json:"is_experiment_candidate,omitempty" yaml:"is_experiment_candidate,omitempty"`
}

// Block is the smallest addressable unit of normalized document text.
type Block struct {
	// ID is "b_" followed by 12 hex characters, derived from the document id,
	// block type, anchor and chunk index. Rebuilding an unchanged document
	// yields the same ids.
	ID string `json:"block_id" yaml:"block_id"`

	// DocumentID identifies the source document.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// SectionID is the owning section.
	SectionID string `json:"section_id" yaml:"section_id"`

	// Type classifies the block content.
	Type BlockType `json:"type" yaml:"type"`

	// SectionPath lists ancestor section titles from root to leaf.
	SectionPath []string `json:"section_path" yaml:"section_path"`

	// Text is the normalized block text. Never empty for a stored block.
	Text string `json:"text" yaml:"text"`

	// TextHash is a sha256 prefix of Text, used to detect content changes.
	TextHash string `json:"text_hash" yaml:"text_hash"`

	// BlockIndex is the position within the whole document.
	BlockIndex int `json:"block_index" yaml:"block_index"`

	// SectionIndex is the position within the owning section.
	SectionIndex int `json:"section_index" yaml:"section_index"`

	// Chunk is set when a long passage was split.
	Chunk *Chunk `json:"chunk,omitempty" yaml:"chunk,omitempty"`

	Source BlockSource `json:"source" yaml:"source"`
	Flags  BlockFlags  `json:"flags" yaml:"flags"`
}

// Section is a titled region of a document. Sections form a tree through
// ParentID; the tree is stored as a flat list indexed by ID.
type Section struct {
	// ID is "s_" followed by 12 hex characters, derived from the document id
	// and the section path.
	ID string `json:"section_id" yaml:"section_id"`

	DocumentID string `json:"document_id" yaml:"document_id"`

	// Title is the last element of Path, or "root" for the root section.
	Title string `json:"title" yaml:"title"`

	// Path lists ancestor titles from root to leaf. len(Path) == Level.
	Path []string `json:"path" yaml:"path"`

	// ParentID is empty for the root section.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	Level int `json:"level" yaml:"level"`

	// BlockIDs lists the section's blocks in document order.
	BlockIDs []string `json:"block_ids" yaml:"block_ids"`

	// Summary is an optional model-written summary of the section text.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}
