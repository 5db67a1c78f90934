// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package noise classifies low-value blocks such as stray punctuation, page
// numbers and rule lines.
package noise

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

var (
	dashRunRe     = regexp.MustCompile(`^[-_.=\x{2013}\x{2014}]{2,}$`)
	experimentRe  = regexp.MustCompile(`(?i)\b(?:method|assay|experiment|result|protocol|incubat|centrifug|binding|expression|quantif)`)
	numericRunes  = ".,%+-−±eE×/:"
	experimentFor = []types.BlockType{types.BlockParagraph, types.BlockAbstract}
)

// IsNoise classifies text. The result is a pure function of its inputs.
// Short text is noise unless typ is in allowShort.
func IsNoise(text string, typ types.BlockType, minLen int, allowShort []types.BlockType) types.BlockFlags {
	t := strings.TrimSpace(text)
	var f types.BlockFlags

	switch {
	case t == "":
		f.IsEmpty = true
	case dashRunRe.MatchString(strings.Join(strings.Fields(t), "")):
		f.IsDashOnly = true
		f.IsPunctOnly = true
	case isPunctOnly(t):
		f.IsPunctOnly = true
	case isNumericOnly(t):
		f.IsNumericOnly = true
	}

	if !f.IsEmpty && utf8.RuneCountInString(t) < minLen && !slices.Contains(allowShort, typ) {
		f.IsShort = true
	}

	f.IsNoise = f.IsEmpty || f.IsPunctOnly || f.IsNumericOnly || f.IsDashOnly || f.IsShort
	return f
}

func isPunctOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isNumericOnly(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r), strings.ContainsRune(numericRunes, r):
		default:
			return false
		}
	}
	return digits > 0
}

// IsExperimentCandidate reports whether a paragraph or abstract mentions an
// experimental cue.
func IsExperimentCandidate(text string, typ types.BlockType) bool {
	return slices.Contains(experimentFor, typ) && experimentRe.MatchString(text)
}

// Filter classifies every block and attaches its flags. With DropNoise set,
// noisy blocks are returned in dropped; otherwise all blocks are kept.
// Block and section indexes are left unchanged so ids and neighbor
// positions stay stable.
func Filter(blocks []types.Block, cfg types.NoiseConfig) (kept, dropped []types.Block) {
	kept = make([]types.Block, 0, len(blocks))
	for _, b := range blocks {
		b.Flags = IsNoise(b.Text, b.Type, cfg.MinLen, cfg.AllowShortTypes)
		b.Flags.IsExperimentCandidate = !b.Flags.IsNoise && IsExperimentCandidate(b.Text, b.Type)
		if b.Flags.IsNoise && cfg.DropNoise {
			dropped = append(dropped, b)
			continue
		}
		kept = append(kept, b)
	}
	if len(dropped) > 0 {
		zap.L().Debug("noise blocks dropped", zap.Int("kept", len(kept)), zap.Int("dropped", len(dropped)))
	}
	return kept, dropped
}

// PruneSections removes dropped block ids from each section's block list.
func PruneSections(sections []types.Section, dropped []types.Block) []types.Section {
	if len(dropped) == 0 {
		return sections
	}
	gone := make(map[string]bool, len(dropped))
	for _, b := range dropped {
		gone[b.ID] = true
	}
	out := make([]types.Section, len(sections))
	for i, s := range sections {
		ids := make([]string, 0, len(s.BlockIDs))
		for _, id := range s.BlockIDs {
			if !gone[id] {
				ids = append(ids, id)
			}
		}
		s.BlockIDs = ids
		out[i] = s
	}
	return out
}
