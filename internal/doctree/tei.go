// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doctree parses the output of a document conversion service into
// the neutral types.Document tree consumed by the block builder. Two input
// formats are supported: GROBID TEI XML and a JSON structure graph.
package doctree

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/grounding-engine/internal/textnorm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

const (
	teiNS = "http://www.tei-c.org/ns/1.0"
	xmlNS = "http://www.w3.org/XML/1998/namespace"
)

// xnode is an element of a parsed XML document with mixed content kept in
// order.
type xnode struct {
	name    string
	attrs   []xml.Attr
	parent  *xnode
	content []xcontent
	path    string
}

// xcontent is either character data or a child element.
type xcontent struct {
	text  string
	child *xnode
}

func (n *xnode) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local && (a.Name.Space == "" || a.Name.Space == teiNS) {
			return a.Value
		}
	}
	return ""
}

func (n *xnode) xmlID() string {
	for _, a := range n.attrs {
		if a.Name.Local == "id" && (a.Name.Space == xmlNS || a.Name.Space == "xml") {
			return a.Value
		}
	}
	return ""
}

// anchor returns the xml:id when present, else the structural path.
func (n *xnode) anchor() string {
	if id := n.xmlID(); id != "" {
		return id
	}
	return n.path
}

// children returns the direct child elements with the given local name.
func (n *xnode) children(name string) []*xnode {
	var out []*xnode
	for _, c := range n.content {
		if c.child != nil && c.child.name == name {
			out = append(out, c.child)
		}
	}
	return out
}

func (n *xnode) first(name string) *xnode {
	for _, c := range n.content {
		if c.child != nil && c.child.name == name {
			return c.child
		}
	}
	return nil
}

// find returns the first descendant reached by following names in order.
func (n *xnode) find(names ...string) *xnode {
	cur := n
	for _, name := range names {
		if cur = cur.first(name); cur == nil {
			return nil
		}
	}
	return cur
}

// descendants returns every descendant element with the given name in
// document order.
func (n *xnode) descendants(name string) []*xnode {
	var out []*xnode
	var walk func(*xnode)
	walk = func(x *xnode) {
		for _, c := range x.content {
			if c.child == nil {
				continue
			}
			if c.child.name == name {
				out = append(out, c.child)
			}
			walk(c.child)
		}
	}
	walk(n)
	return out
}

// text concatenates all character data below n in document order.
func (n *xnode) text() string {
	var b strings.Builder
	var walk func(*xnode)
	walk = func(x *xnode) {
		for _, c := range x.content {
			if c.child != nil {
				walk(c.child)
			} else {
				b.WriteString(c.text)
			}
		}
	}
	walk(n)
	return b.String()
}

// parseXML reads an XML document into an xnode tree. Paths follow the
// "/TEI/text/body/div[2]/p[1]" form with 1-based sibling positions.
func parseXML(r io.Reader) (*xnode, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root, cur *xnode
	counts := []map[string]int{{}}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			local := t.Name.Local
			siblings := counts[len(counts)-1]
			siblings[local]++
			n := &xnode{name: local, attrs: t.Attr, parent: cur}
			if cur == nil {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				n.path = "/" + local
				root = n
			} else {
				n.path = cur.path + "/" + local + "[" + strconv.Itoa(siblings[local]) + "]"
				cur.content = append(cur.content, xcontent{child: n})
			}
			cur = n
			counts = append(counts, map[string]int{})
		case xml.EndElement:
			if cur == nil {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			cur = cur.parent
			counts = counts[:len(counts)-1]
		case xml.CharData:
			if cur != nil {
				cur.content = append(cur.content, xcontent{text: string(t)})
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

// ParseTEI parses GROBID TEI XML into a Document. The tree has a "front"
// region (title and abstracts), the body's sections and paragraphs, and a
// "back" region. A document without text/body is a StructuralError.
func ParseTEI(r io.Reader) (*types.Document, error) {
	root, err := parseXML(r)
	if err != nil {
		return nil, &StructuralError{Format: "tei", Reason: "invalid XML", Err: err}
	}
	if root.name != "TEI" && root.name != "teiCorpus" {
		return nil, &StructuralError{Format: "tei", Reason: fmt.Sprintf("unexpected root element %q", root.name)}
	}

	textEl := root.first("text")
	if textEl == nil {
		return nil, &StructuralError{Format: "tei", Reason: "missing text element"}
	}
	body := textEl.first("body")
	if body == nil {
		return nil, &StructuralError{Format: "tei", Reason: "missing text/body element"}
	}

	doc := &types.Document{}

	front := types.Node{Kind: types.NodeRegion, Text: "front", RawKind: "front", Anchor: "front"}
	if header := root.first("teiHeader"); header != nil {
		if t := header.find("fileDesc", "titleStmt", "title"); t != nil {
			doc.Title = textnorm.Normalize(t.text())
			front.Children = append(front.Children, types.Node{
				Kind: types.NodeTitle, Anchor: t.anchor(), Text: t.text(), RawKind: "title",
			})
		}
	}
	abstract := types.Node{Kind: types.NodeRegion, Text: "abstract", RawKind: "abstract", Anchor: "front/abstract"}
	var abstracts []*xnode
	if header := root.first("teiHeader"); header != nil {
		abstracts = append(abstracts, header.descendants("abstract")...)
	}
	if fr := textEl.first("front"); fr != nil {
		abstracts = append(abstracts, fr.descendants("abstract")...)
	}
	for _, a := range abstracts {
		abstract.Children = append(abstract.Children, types.Node{
			Kind: types.NodeAbstract, Anchor: a.anchor(), Text: a.text(), RawKind: "abstract",
		})
	}
	if len(abstract.Children) > 0 {
		front.Children = append(front.Children, abstract)
	}
	if len(front.Children) > 0 {
		doc.Nodes = append(doc.Nodes, front)
	}

	if divs := body.children("div"); len(divs) > 0 {
		for _, d := range divs {
			doc.Nodes = append(doc.Nodes, walkDiv(d)...)
		}
	} else {
		for _, p := range body.descendants("p") {
			doc.Nodes = append(doc.Nodes, paragraphNode(p))
		}
		for _, tb := range body.descendants("table") {
			doc.Nodes = append(doc.Nodes, tableNode(tb, nil))
		}
	}

	if back := textEl.first("back"); back != nil {
		if txt := back.text(); strings.TrimSpace(txt) != "" {
			doc.Nodes = append(doc.Nodes, types.Node{
				Kind: types.NodeRegion, Text: "back", RawKind: "back", Anchor: "back",
				Children: []types.Node{{
					Kind: types.NodeBackMatter, Anchor: back.anchor(), Text: txt, RawKind: "back",
				}},
			})
		}
	}

	return doc, nil
}

// walkDiv converts a div into a section node. A div without a usable head
// contributes its content to the enclosing section.
func walkDiv(div *xnode) []types.Node {
	var content []types.Node
	for _, c := range div.content {
		x := c.child
		if x == nil {
			continue
		}
		switch x.name {
		case "p":
			content = append(content, paragraphNode(x))
		case "figure":
			content = append(content, figureNode(x))
		case "table":
			content = append(content, tableNode(x, nil))
		case "formula":
			content = append(content, types.Node{
				Kind: types.NodeEquation, Anchor: x.anchor(), Text: x.text(), RawKind: "formula",
			})
		case "div":
			content = append(content, walkDiv(x)...)
		}
	}

	head := div.first("head")
	if head == nil || textnorm.Normalize(head.text()) == "" {
		return content
	}
	return []types.Node{{
		Kind:     types.NodeSection,
		Anchor:   head.anchor(),
		Text:     head.text(),
		Label:    head.attr("n"),
		RawKind:  "head",
		Children: content,
	}}
}

func paragraphNode(p *xnode) types.Node {
	return types.Node{Kind: types.NodeParagraph, Anchor: p.anchor(), Text: p.text(), RawKind: "p"}
}

// figureNode converts a figure element. Figures of type "table" carry a
// structured table.
func figureNode(fig *xnode) types.Node {
	caption := ""
	if fd := fig.first("figDesc"); fd != nil {
		caption = fd.text()
	}
	label := ""
	if h := fig.first("head"); h != nil {
		label = textnorm.Normalize(h.text())
	}
	if l := fig.first("label"); l != nil && label == "" {
		label = textnorm.Normalize(l.text())
	}

	if fig.attr("type") == "table" {
		if tb := fig.first("table"); tb != nil {
			n := tableNode(tb, fig)
			n.Text = caption
			n.Label = label
			return n
		}
	}

	anchor := fig.anchor()
	if fd := fig.first("figDesc"); fd != nil && fig.xmlID() == "" {
		anchor = fd.anchor()
	}
	return types.Node{Kind: types.NodeFigure, Anchor: anchor, Text: caption, Label: label, RawKind: "figDesc"}
}

// tableNode reads row/cell structure. owner, when set, supplies the anchor.
func tableNode(tb, owner *xnode) types.Node {
	var rows [][]string
	for _, r := range tb.children("row") {
		var cells []string
		for _, c := range r.content {
			if c.child != nil && (c.child.name == "cell" || c.child.name == "th") {
				cells = append(cells, textnorm.Normalize(c.child.text()))
			}
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	anchor := tb.anchor()
	if owner != nil && owner.xmlID() != "" {
		anchor = owner.xmlID()
	}
	n := types.Node{Kind: types.NodeTable, Anchor: anchor, Rows: rows, RawKind: "table"}
	if len(rows) == 0 {
		n.Text = tb.text()
	}
	return n
}
