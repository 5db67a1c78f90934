// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blocks turns a parsed document tree into normalized, chunked,
// deterministically identified blocks grouped into a section tree.
package blocks

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/internal/detect"
	"github.com/pdiddy/grounding-engine/internal/doctree"
	"github.com/pdiddy/grounding-engine/internal/textnorm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// Result holds the output of a build.
type Result struct {
	// Sections are in registration order; the root comes first.
	Sections []types.Section

	// Blocks are in document order (ascending BlockIndex).
	Blocks []types.Block
}

// Builder builds blocks from a document tree. A Builder is stateless and
// safe for concurrent use.
type Builder struct {
	cfg types.BuildConfig
}

// NewBuilder creates a Builder with the given configuration.
func NewBuilder(cfg types.BuildConfig) *Builder {
	return &Builder{cfg: cfg}
}

// build is the per-document walk state.
type build struct {
	cfg        types.BuildConfig
	documentID string
	sections   *Sections
	blocks     []types.Block
	seen       map[string]string
}

// Build walks doc depth-first and returns its sections and blocks. A
// malformed tree fails the whole build with a *doctree.StructuralError and
// no partial result.
func (b *Builder) Build(doc *types.Document, documentID string) (*Result, error) {
	if doc == nil {
		return nil, &doctree.StructuralError{Format: "tree", Reason: "nil document"}
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, &doctree.StructuralError{Format: "tree", Reason: "empty document id"}
	}

	st := &build{
		cfg:        b.cfg,
		documentID: documentID,
		sections:   NewSections(documentID),
		seen:       make(map[string]string),
	}
	if err := st.walk(doc.Nodes, nil); err != nil {
		return nil, err
	}

	zap.L().Debug("blocks built",
		zap.String("document_id", documentID),
		zap.Int("sections", st.sections.Len()),
		zap.Int("blocks", len(st.blocks)))

	return &Result{Sections: st.sections.List(), Blocks: st.blocks}, nil
}

func (st *build) walk(nodes []types.Node, path []string) error {
	for i := range nodes {
		if err := st.visit(&nodes[i], path); err != nil {
			return err
		}
	}
	return nil
}

func (st *build) visit(n *types.Node, path []string) error {
	switch n.Kind {
	case types.NodeRegion:
		return st.region(n, path)
	case types.NodeSection:
		return st.section(n, path)
	}

	if len(n.Children) > 0 {
		return &doctree.StructuralError{Format: "tree", Reason: fmt.Sprintf("%s node %q has children", n.Kind, n.Anchor)}
	}
	if n.Anchor == "" {
		return &doctree.StructuralError{Format: "tree", Reason: fmt.Sprintf("%s node without anchor", n.Kind)}
	}

	switch n.Kind {
	case types.NodeTitle:
		if !st.cfg.IncludeFront {
			return nil
		}
		return st.emit(n, path, types.BlockTitle, textnorm.Normalize(n.Text), "", "")
	case types.NodeAbstract:
		if !st.cfg.IncludeFront {
			return nil
		}
		return st.chunked(n, path, types.BlockAbstract)
	case types.NodeParagraph:
		return st.paragraph(n, path)
	case types.NodeFigure:
		return st.figure(n, path)
	case types.NodeTable:
		return st.table(n, path)
	case types.NodeEquation:
		return st.emit(n, path, types.BlockEquation, textnorm.Normalize(n.Text), "", "")
	case types.NodeBackMatter:
		if !st.cfg.IncludeBack {
			return nil
		}
		return st.chunked(n, path, types.BlockBackMatter)
	}
	return &doctree.StructuralError{Format: "tree", Reason: fmt.Sprintf("unknown node kind %q", n.Kind)}
}

// region descends into an untitled container. Front and back matter are
// skipped unless configured.
func (st *build) region(n *types.Node, path []string) error {
	switch n.RawKind {
	case "front":
		if !st.cfg.IncludeFront {
			return nil
		}
	case "back":
		if !st.cfg.IncludeBack {
			return nil
		}
	}
	if name := textnorm.Normalize(n.Text); name != "" {
		path = appendPath(path, name)
	}
	return st.walk(n.Children, path)
}

// section registers a headed section, emits its section_title block and
// descends into its content.
func (st *build) section(n *types.Node, path []string) error {
	title := textnorm.Normalize(n.Text)
	if title == "" {
		return st.walk(n.Children, path)
	}
	child := appendPath(path, title)
	st.sections.Register(child)
	if n.Anchor != "" {
		if err := st.emit(n, child, types.BlockSectionTitle, title, "", ""); err != nil {
			return err
		}
	}
	return st.walk(n.Children, child)
}

// paragraph emits a paragraph, promoting it to a figure caption or a table
// when the detectors accept it.
func (st *build) paragraph(n *types.Node, path []string) error {
	if caption, label, ok := detect.DetectFigureCaption(n.Text, st.cfg.Figures); ok {
		return st.emit(n, path, types.BlockFigureCaption, caption, label, "paragraph")
	}
	if tbl, ok := detect.DetectTable(textnorm.NormalizeLines(n.Text), st.cfg.Tables); ok {
		label, _ := detect.TableLabel(n.Text)
		if label != "" {
			if err := st.emit(n, path, types.BlockTableLabel, label, label, "paragraph"); err != nil {
				return err
			}
		}
		return st.emit(n, path, types.BlockTableBody, tbl.Markdown(), label, "paragraph")
	}
	return st.chunked(n, path, types.BlockParagraph)
}

func (st *build) figure(n *types.Node, path []string) error {
	text := textnorm.Normalize(n.Text)
	label := textnorm.Normalize(n.Label)
	if label == "" {
		label, _ = detect.FigureLabel(text)
	}
	if text == "" {
		text = label
	}
	return st.emit(n, path, types.BlockFigureCaption, text, label, "")
}

// table emits an optional table_label block (label and caption) followed by
// a table_body block rendered as markdown.
func (st *build) table(n *types.Node, path []string) error {
	caption := textnorm.Normalize(n.Text)
	label := textnorm.Normalize(n.Label)
	if label == "" {
		label, _ = detect.TableLabel(caption)
	}

	var body string
	switch {
	case len(n.Rows) > 0:
		body = detect.NewTable(n.Rows).Markdown()
	default:
		if tbl, ok := detect.DetectTable(textnorm.NormalizeLines(n.Text), st.cfg.Tables); ok {
			body = tbl.Markdown()
		} else {
			body = caption
		}
		caption = ""
	}

	heading := caption
	if label != "" && !strings.HasPrefix(strings.ToLower(caption), strings.ToLower(label)) {
		heading = strings.TrimSpace(label + " " + caption)
	}
	if heading != "" {
		if err := st.emit(n, path, types.BlockTableLabel, heading, label, ""); err != nil {
			return err
		}
	}
	return st.emit(n, path, types.BlockTableBody, body, label, "")
}

// chunked emits one block per chunk of the node's normalized text.
func (st *build) chunked(n *types.Node, path []string, typ types.BlockType) error {
	chunks := ChunkSentences(textnorm.Normalize(n.Text), st.cfg.Chunking)
	if len(chunks) <= 1 {
		text := ""
		if len(chunks) == 1 {
			text = chunks[0]
		}
		return st.emit(n, path, typ, text, "", "")
	}
	for i, c := range chunks {
		if err := st.emitChunk(n, path, typ, c, "", "", &types.Chunk{Index: i, Total: len(chunks)}); err != nil {
			return err
		}
	}
	return nil
}

func (st *build) emit(n *types.Node, path []string, typ types.BlockType, text, label, promotedFrom string) error {
	return st.emitChunk(n, path, typ, text, label, promotedFrom, nil)
}

// emitChunk appends a block. Empty text is skipped. Two blocks with the
// same id mean the tree reused an anchor, which is a structural error.
func (st *build) emitChunk(n *types.Node, path []string, typ types.BlockType, text, label, promotedFrom string, chunk *types.Chunk) error {
	if text == "" {
		return nil
	}
	idx := 0
	if chunk != nil {
		idx = chunk.Index
	}
	id := BlockID(st.documentID, typ, n.Anchor, idx)
	if _, dup := st.seen[id]; dup {
		return &doctree.StructuralError{Format: "tree", Reason: fmt.Sprintf("duplicate %s anchor %q", typ, n.Anchor)}
	}
	st.seen[id] = n.Anchor

	sectionID := st.sections.Register(path)
	sp := make([]string, len(path))
	copy(sp, path)

	st.blocks = append(st.blocks, types.Block{
		ID:           id,
		DocumentID:   st.documentID,
		SectionID:    sectionID,
		Type:         typ,
		SectionPath:  sp,
		Text:         text,
		TextHash:     textnorm.Hash(text),
		BlockIndex:   len(st.blocks),
		SectionIndex: st.sections.appendBlock(sectionID, id),
		Chunk:        chunk,
		Source: types.BlockSource{
			Anchor:       n.Anchor,
			Kind:         n.RawKind,
			Label:        label,
			PromotedFrom: promotedFrom,
			Prov:         n.Prov,
		},
	})
	return nil
}

func appendPath(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}
