// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/grounding-engine/internal/schema"
	"github.com/pdiddy/grounding-engine/internal/textnorm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

//go:embed structure.schema.json
var structureSchemaJSON []byte

var structureSchema = schema.MustCompile("structure.schema.json", structureSchemaJSON)

type structureDoc struct {
	Title    string             `json:"title"`
	Sections []structureSection `json:"sections"`
}

type structureSection struct {
	Title  string           `json:"title"`
	Level  int              `json:"level"`
	Ref    string           `json:"ref"`
	Blocks []structureBlock `json:"blocks"`
}

type structureBlock struct {
	Kind    string          `json:"kind"`
	Label   string          `json:"label"`
	Text    string          `json:"text"`
	Ref     string          `json:"ref"`
	Caption json.RawMessage `json:"caption"`
	Rows    [][]any         `json:"rows"`
	Prov    []structureProv `json:"prov"`
}

type structureProv struct {
	Page   int       `json:"page"`
	PageNo int       `json:"page_no"`
	BBox   []float64 `json:"bbox"`
}

// ParseStructure parses a JSON structure graph into a Document. Sections are
// nested by their level: a section becomes a child of the nearest preceding
// section with a smaller level. Sections without a level are top level. An
// untitled section contributes its blocks to the enclosing section.
func ParseStructure(r io.Reader) (*types.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &StructuralError{Format: "structure", Reason: "read failed", Err: err}
	}
	if err := schema.Validate(structureSchema, raw); err != nil {
		return nil, &StructuralError{Format: "structure", Reason: "schema validation failed", Err: err}
	}
	var sd structureDoc
	if err := json.Unmarshal(raw, &sd); err != nil {
		return nil, &StructuralError{Format: "structure", Reason: "decode failed", Err: err}
	}

	doc := &types.Document{Title: textnorm.Normalize(sd.Title)}

	// stack holds pointers into the tree for the open sections.
	type open struct {
		level int
		node  *types.Node
	}
	root := &types.Node{Kind: types.NodeRegion}
	stack := []open{{level: -1, node: root}}

	for si, sec := range sd.Sections {
		var content []types.Node
		for bi, b := range sec.Blocks {
			n, isTitle := structureNode(b, si, bi)
			if isTitle && doc.Title == "" {
				doc.Title = textnorm.Normalize(n.Text)
			}
			content = append(content, n)
		}

		title := textnorm.Normalize(sec.Title)
		if title == "" {
			top := stack[len(stack)-1].node
			top.Children = append(top.Children, content...)
			continue
		}

		level := sec.Level
		if level < 1 {
			level = 1
		}
		for len(stack) > 1 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		anchor := sec.Ref
		if anchor == "" {
			anchor = fmt.Sprintf("/sections/%d", si)
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, types.Node{
			Kind:     types.NodeSection,
			Anchor:   anchor,
			Text:     sec.Title,
			RawKind:  "section",
			Children: content,
		})
		stack = append(stack, open{level: level, node: &parent.Children[len(parent.Children)-1]})
	}

	doc.Nodes = root.Children
	return doc, nil
}

// structureNode maps a converter block onto a Node. The second result
// reports a document title block.
func structureNode(b structureBlock, si, bi int) (types.Node, bool) {
	anchor := b.Ref
	if anchor == "" {
		anchor = fmt.Sprintf("/sections/%d/blocks/%d", si, bi)
	}
	n := types.Node{
		Anchor:  anchor,
		Text:    b.Text,
		Label:   b.Label,
		RawKind: b.Kind,
		Prov:    structureProvenance(b.Prov),
	}

	switch strings.ToLower(b.Kind) {
	case "title":
		n.Kind = types.NodeTitle
		return n, true
	case "abstract":
		n.Kind = types.NodeAbstract
	case "table":
		n.Kind = types.NodeTable
		n.Rows = structureRows(b.Rows)
		if caption := structureCaption(b.Caption); caption != "" {
			if len(n.Rows) > 0 {
				n.Text = caption
			} else if n.Text == "" {
				n.Text = caption
			}
		}
	case "picture", "figure":
		n.Kind = types.NodeFigure
		if caption := structureCaption(b.Caption); caption != "" {
			n.Text = caption
		}
	case "formula", "equation":
		n.Kind = types.NodeEquation
	default:
		n.Kind = types.NodeParagraph
	}
	return n, false
}

func structureCaption(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, " ")
	}
	return ""
}

func structureRows(in [][]any) [][]string {
	var rows [][]string
	for _, r := range in {
		cells := make([]string, len(r))
		for i, c := range r {
			if c != nil {
				cells[i] = textnorm.Normalize(fmt.Sprint(c))
			}
		}
		rows = append(rows, cells)
	}
	return rows
}

func structureProvenance(in []structureProv) []types.Provenance {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Provenance, 0, len(in))
	for _, p := range in {
		page := p.Page
		if page == 0 {
			page = p.PageNo
		}
		out = append(out, types.Provenance{Page: page, BBox: p.BBox})
	}
	return out
}
