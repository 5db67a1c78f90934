// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grounding

import "github.com/pdiddy/grounding-engine/pkg/types"

// clone copies every slice reachable from it so Validate can rewrite field
// values without touching the caller's item. Value pointers are shared; they
// are replaced, never written through.
func clone(it types.Item) types.Item {
	e := &it.Entities
	e.Samples = cloneSlice(e.Samples)
	e.Assays = cloneSlice(e.Assays)
	e.ProteinsOrTargets = cloneSlice(e.ProteinsOrTargets)
	e.ChemicalsOrReagents = cloneSlice(e.ChemicalsOrReagents)
	e.Instruments = cloneSlice(e.Instruments)
	e.Software = cloneSlice(e.Software)

	it.Design.Comparisons = cloneSlice(it.Design.Comparisons)
	it.Design.Variables = cloneSlice(it.Design.Variables)
	for i := range it.Design.Variables {
		it.Design.Variables[i].Levels = cloneSlice(it.Design.Variables[i].Levels)
	}

	it.Protocol.Steps = cloneSlice(it.Protocol.Steps)
	for i := range it.Protocol.Steps {
		it.Protocol.Steps[i].Parameters = cloneSlice(it.Protocol.Steps[i].Parameters)
	}
	it.Results.Metrics = cloneSlice(it.Results.Metrics)

	g := &it.Grounding
	g.EvidenceBlockIDs = cloneSlice(g.EvidenceBlockIDs)
	g.SourceSectionIDs = cloneSlice(g.SourceSectionIDs)
	g.Anchors = cloneSlice(g.Anchors)
	g.MissingCritical = cloneSlice(g.MissingCritical)
	it.Missing = cloneSlice(it.Missing)
	return it
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
