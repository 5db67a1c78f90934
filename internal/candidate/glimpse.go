// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

const (
	glimpseHead   = 3
	glimpseTail   = 3
	glimpseSignal = 4
)

// signalCues are phrases that suggest a block reports a measurement.
var signalCues = []string{
	"we measured", "we quantified", "n=", "p<", "p-value",
	"western blot", "lc-ms", "lc-ms/ms", "mass spectrometry",
	"elisa", "spr", "itc", "mst", "incubated", "enzyme activity",
	"assay", "figure", "table", "proteomics", "identified", "quantified",
}

var numberRe = regexp.MustCompile(`\b\d+(\.\d+)?\b`)

// SignalScore counts the signal cues in text plus one point per five
// numbers.
func SignalScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, cue := range signalCues {
		if strings.Contains(lower, cue) {
			score++
		}
	}
	return score + len(numberRe.FindAllStringIndex(lower, -1))/5
}

// Glimpse picks a small representative subset of a section's blocks: the
// first three, the last three, and up to four blocks with the highest
// positive signal score. The result is in that order without repeats.
func Glimpse(blocks []types.Block) []types.Block {
	if len(blocks) == 0 {
		return nil
	}
	sorted := make([]types.Block, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BlockIndex < sorted[j].BlockIndex })

	head := sorted[:min(glimpseHead, len(sorted))]
	var tail []types.Block
	if len(sorted) > glimpseHead {
		tail = sorted[max(len(sorted)-glimpseTail, 0):]
	}

	scores := make(map[string]int, len(sorted))
	for _, b := range sorted {
		scores[b.ID] = SignalScore(b.Text)
	}
	byScore := make([]types.Block, len(sorted))
	copy(byScore, sorted)
	sort.SliceStable(byScore, func(i, j int) bool { return scores[byScore[i].ID] > scores[byScore[j].ID] })
	var signal []types.Block
	for _, b := range byScore[:min(glimpseSignal, len(byScore))] {
		if scores[b.ID] > 0 {
			signal = append(signal, b)
		}
	}

	seen := make(map[string]bool)
	out := make([]types.Block, 0, glimpseHead+glimpseTail+glimpseSignal)
	for _, list := range [][]types.Block{head, tail, signal} {
		for _, b := range list {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			out = append(out, b)
		}
	}
	return out
}
