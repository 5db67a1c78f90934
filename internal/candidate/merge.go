// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package candidate proposes provisional items per section and merges
// duplicate proposals before evidence retrieval.
package candidate

import (
	"strings"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

// MergeKey returns the grouping key of c: the trimmed, lowercased label and
// the lowercased kind joined by "|".
func MergeKey(c types.Candidate) string {
	return strings.ToLower(strings.TrimSpace(c.Label)) + "|" + strings.ToLower(string(c.ProposedItemKind))
}

// Merge collapses candidates that share a MergeKey. The first occurrence of
// each key is the representative; later duplicates contribute their anchors,
// evidence hints and source block ids and are discarded. Output order is the
// order of first appearance. The input slice is not modified.
func Merge(candidates []types.Candidate) []types.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	index := make(map[string]int, len(candidates))
	out := make([]types.Candidate, 0, len(candidates))

	for _, c := range candidates {
		key := MergeKey(c)
		if i, ok := index[key]; ok {
			rep := &out[i]
			rep.Anchors = union(rep.Anchors, c.Anchors)
			rep.EvidenceHints = union(rep.EvidenceHints, c.EvidenceHints)
			rep.SourceBlockIDs = union(rep.SourceBlockIDs, c.SourceBlockIDs)
			continue
		}
		index[key] = len(out)
		c.Anchors = union(nil, c.Anchors)
		c.EvidenceHints = union(nil, c.EvidenceHints)
		c.SourceBlockIDs = union(nil, c.SourceBlockIDs)
		out = append(out, c)
	}
	return out
}

// union appends the elements of b missing from a, keeping order and
// dropping repeats. It always returns a fresh slice.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
