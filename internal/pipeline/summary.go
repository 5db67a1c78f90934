// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/pdiddy/grounding-engine/internal/grounding"
)

// Drop reasons counted in Summary.Drops, in addition to the grounding
// reasons grounding.ReasonNoGrounding and grounding.ReasonCoverageL0.
const (
	DropNoEvidence       = "no_evidence"
	DropExtractionFailed = "extraction_failed"
	DropModel            = "model_drop"
)

// dropOrder fixes the print order of drop reasons.
var dropOrder = []string{
	DropNoEvidence,
	DropExtractionFailed,
	DropModel,
	grounding.ReasonNoGrounding,
	grounding.ReasonCoverageL0,
}

// Summary counts what happened to one document during a run.
type Summary struct {
	DocumentID string

	Sections     int
	Blocks       int
	NoiseDropped int

	// Embedded counts blocks sent to the embedder; Reused counts blocks
	// whose stored vector was still current.
	Embedded   int
	Reused     int
	IndexError string

	Summarized int

	Proposed        int
	ProposeFailures int
	Merged          int

	Admitted int
	Drops    map[string]int
}

func (s *Summary) drop(reason string) {
	if s.Drops == nil {
		s.Drops = make(map[string]int)
	}
	s.Drops[reason]++
}

// Dropped returns the total number of dropped candidates.
func (s Summary) Dropped() int {
	n := 0
	for _, c := range s.Drops {
		n += c
	}
	return n
}

// Print writes a human-readable summary to w.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "document %s\n", s.DocumentID)
	fmt.Fprintf(w, "  sections: %d, blocks: %d, noise dropped: %d\n", s.Sections, s.Blocks, s.NoiseDropped)
	if s.Embedded > 0 || s.Reused > 0 || s.IndexError != "" {
		fmt.Fprintf(w, "  embedded: %d, reused: %d\n", s.Embedded, s.Reused)
	}
	if s.IndexError != "" {
		fmt.Fprintf(w, "  index error: %s\n", s.IndexError)
	}
	if s.Summarized > 0 {
		fmt.Fprintf(w, "  sections summarized: %d\n", s.Summarized)
	}
	fmt.Fprintf(w, "  candidates proposed: %d, merged: %d", s.Proposed, s.Merged)
	if s.ProposeFailures > 0 {
		fmt.Fprintf(w, ", failed sections: %d", s.ProposeFailures)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  items admitted: %d, dropped: %d\n", s.Admitted, s.Dropped())

	for _, reason := range dropOrder {
		if n := s.Drops[reason]; n > 0 {
			fmt.Fprintf(w, "    %-18s %d\n", reason, n)
		}
	}
	var other []string
	for reason := range s.Drops {
		if !contains(dropOrder, reason) {
			other = append(other, reason)
		}
	}
	sort.Strings(other)
	for _, reason := range other {
		fmt.Fprintf(w, "    %-18s %d\n", reason, s.Drops[reason])
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
