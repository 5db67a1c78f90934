// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textnorm

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Segmenter splits normalized text at sentence boundaries. A Segmenter is
// immutable after construction and safe for concurrent use.
type Segmenter struct {
	abbreviations map[string]bool
}

var (
	defaultOnce      sync.Once
	defaultSegmenter *Segmenter
)

// commonAbbreviations end with a period but rarely end a sentence in
// scientific prose.
var commonAbbreviations = []string{
	"al", "approx", "ca", "cf", "co", "dr", "e.g", "eq", "eqs", "etc", "fig", "figs",
	"i.e", "inc", "ltd", "min", "mr", "mrs", "ms", "no", "nos", "prof", "ref", "refs",
	"resp", "sect", "suppl", "tab", "vol", "vs", "wt",
}

// Default returns the process-wide segmenter, building it on first use.
func Default() *Segmenter {
	defaultOnce.Do(func() {
		defaultSegmenter = NewSegmenter(commonAbbreviations)
	})
	return defaultSegmenter
}

// NewSegmenter returns a segmenter that never splits after the given
// abbreviations (case-insensitive, without the trailing period).
func NewSegmenter(abbreviations []string) *Segmenter {
	m := make(map[string]bool, len(abbreviations))
	for _, a := range abbreviations {
		m[strings.ToLower(strings.TrimSuffix(a, "."))] = true
	}
	return &Segmenter{abbreviations: m}
}

// Split returns the sentences of text. Boundaries fall on a single space that
// follows '.', '!' or '?' (optionally followed by closing quotes or
// brackets) and precedes an uppercase letter, digit, or opening bracket.
// Joining the result with single spaces reproduces the input when the input
// is normalized.
func (s *Segmenter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' || i == 0 || i+1 >= len(text) {
			continue
		}
		if !s.endsSentence(text[start:i]) {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i+1:])
		if !unicode.IsUpper(next) && !unicode.IsDigit(next) && !strings.ContainsRune("([\"'\u201c", next) {
			continue
		}
		out = append(out, text[start:i])
		start = i + 1
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// endsSentence reports whether the candidate sentence ends with terminal
// punctuation that is not part of an abbreviation or initial.
func (s *Segmenter) endsSentence(sentence string) bool {
	trimmed := strings.TrimRight(sentence, "\"')]\u201d\u2019")
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	if last == '!' || last == '?' {
		return true
	}
	if last != '.' {
		return false
	}

	word := trimmed[:len(trimmed)-1]
	if idx := strings.LastIndexByte(word, ' '); idx >= 0 {
		word = word[idx+1:]
	}
	word = strings.TrimLeft(word, "(\"'[")
	if word == "" {
		return true
	}
	// Single-letter initials ("J. Smith") and decimal points are not boundaries.
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		if unicode.IsLetter(r) {
			return false
		}
	}
	return !s.abbreviations[strings.ToLower(word)]
}
