// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blocks

import "github.com/pdiddy/grounding-engine/pkg/types"

// RootTitle is the title of the implicit root section.
const RootTitle = "root"

// Sections is an arena of the sections of one document, indexed by id.
// Sections are kept in registration order; a parent is always registered
// before its children.
type Sections struct {
	documentID string
	index      map[string]int
	list       []types.Section
}

// NewSections returns an arena holding only the root section.
func NewSections(documentID string) *Sections {
	s := &Sections{documentID: documentID, index: make(map[string]int)}
	s.Register(nil)
	return s
}

// Register returns the id of the section at path, registering it and any
// missing ancestors first.
func (s *Sections) Register(path []string) string {
	id := SectionID(s.documentID, path)
	if _, ok := s.index[id]; ok {
		return id
	}

	var parentID string
	title := RootTitle
	if len(path) > 0 {
		parentID = s.Register(path[:len(path)-1])
		title = path[len(path)-1]
	}

	p := make([]string, len(path))
	copy(p, path)
	s.index[id] = len(s.list)
	s.list = append(s.list, types.Section{
		ID:         id,
		DocumentID: s.documentID,
		Title:      title,
		Path:       p,
		ParentID:   parentID,
		Level:      len(path),
		BlockIDs:   []string{},
	})
	return id
}

// Get returns the section with the given id.
func (s *Sections) Get(id string) (*types.Section, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.list[i], true
}

// Parent returns the parent of the section with the given id. The root has
// no parent.
func (s *Sections) Parent(id string) (*types.Section, bool) {
	sec, ok := s.Get(id)
	if !ok || sec.ParentID == "" {
		return nil, false
	}
	return s.Get(sec.ParentID)
}

// Root returns the root section.
func (s *Sections) Root() *types.Section {
	return &s.list[0]
}

// Len returns the number of registered sections.
func (s *Sections) Len() int { return len(s.list) }

// List returns a copy of all sections in registration order.
func (s *Sections) List() []types.Section {
	out := make([]types.Section, len(s.list))
	copy(out, s.list)
	return out
}

// appendBlock records blockID in the section and returns its position
// within the section.
func (s *Sections) appendBlock(sectionID, blockID string) int {
	sec, _ := s.Get(sectionID)
	sec.BlockIDs = append(sec.BlockIDs, blockID)
	return len(sec.BlockIDs) - 1
}
