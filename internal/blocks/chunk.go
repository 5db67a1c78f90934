// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blocks

import (
	"strings"

	"github.com/pdiddy/grounding-engine/internal/textnorm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// ChunkSentences splits normalized text into chunks of whole sentences that
// respect the character and sentence budgets. A single sentence longer than
// MaxChars forms its own chunk. With OverlapSentences > 0 each chunk after
// the first repeats the trailing sentences of its predecessor.
//
// Text within both budgets is returned as a single chunk.
func ChunkSentences(text string, cfg types.ChunkingConfig) []string {
	if text == "" {
		return nil
	}
	sents := textnorm.Sentences(text)
	if len(sents) == 0 {
		return nil
	}
	if withinBudget(len(text), len(sents), cfg) {
		return []string{text}
	}

	maxSent := cfg.MaxSentences
	overlap := cfg.OverlapSentences
	if overlap < 0 {
		overlap = 0
	}
	if maxSent > 0 && overlap >= maxSent {
		overlap = maxSent - 1
	}

	var (
		chunks []string
		cur    []string
		curLen int
		fresh  int
	)
	flush := func() {
		chunks = append(chunks, strings.Join(cur, " "))
		keep := overlap
		if keep > len(cur) {
			keep = len(cur)
		}
		cur = append([]string(nil), cur[len(cur)-keep:]...)
		curLen = joinedLen(cur)
		fresh = 0
	}

	for _, s := range sents {
		if fresh > 0 {
			full := maxSent > 0 && len(cur) >= maxSent
			long := cfg.MaxChars > 0 && curLen+1+len(s) > cfg.MaxChars
			if full || long {
				flush()
			}
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, s)
		curLen += len(s)
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

func withinBudget(chars, sentences int, cfg types.ChunkingConfig) bool {
	if cfg.MaxChars > 0 && chars > cfg.MaxChars {
		return false
	}
	if cfg.MaxSentences > 0 && sentences > cfg.MaxSentences {
		return false
	}
	return true
}

func joinedLen(ss []string) int {
	if len(ss) == 0 {
		return 0
	}
	n := len(ss) - 1
	for _, s := range ss {
		n += len(s)
	}
	return n
}
