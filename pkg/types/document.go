// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// NodeKind distinguishes the nodes of a parsed document tree.
type NodeKind string

const (
	// NodeRegion is an untitled structural container (front matter,
	// abstract, back matter). Its Text becomes a section path element but
	// no section_title block is emitted.
	NodeRegion NodeKind = "region"

	// NodeSection is a headed section. Its Text is the heading.
	NodeSection NodeKind = "section"

	NodeTitle      NodeKind = "title"
	NodeAbstract   NodeKind = "abstract"
	NodeParagraph  NodeKind = "paragraph"
	NodeFigure     NodeKind = "figure"
	NodeTable      NodeKind = "table"
	NodeEquation   NodeKind = "equation"
	NodeBackMatter NodeKind = "back_matter"
)

// Node is one element of a parsed document tree. Only NodeRegion and
// NodeSection carry Children.
type Node struct {
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Anchor is a stable per-node identifier: an xml:id, a converter
	// reference, or a structural path.
	Anchor string `json:"anchor" yaml:"anchor"`

	// Text is the raw node text (heading text for sections).
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Label is a raw label such as "Figure 1" or "Table 2".
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// RawKind is the converter's own name for the node (e.g. "p", "figDesc").
	RawKind string `json:"raw_kind,omitempty" yaml:"raw_kind,omitempty"`

	// Rows holds table cells when the converter supplied a structured table.
	Rows [][]string `json:"rows,omitempty" yaml:"rows,omitempty"`

	Prov []Provenance `json:"prov,omitempty" yaml:"prov,omitempty"`

	Children []Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Document is the neutral tree produced from a conversion service's output.
type Document struct {
	// Title is the document title, when known.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Nodes are the top-level nodes in document order.
	Nodes []Node `json:"nodes" yaml:"nodes"`
}
