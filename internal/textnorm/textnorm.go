// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textnorm normalizes document text and splits it into sentences.
package textnorm

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies Unicode NFC composition, maps every whitespace rune
// (including no-break spaces) to a single ASCII space, collapses runs, and
// trims the result.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '\u00a0' || r == '\u202f' || r == '\u2007' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeLines normalizes each line independently and drops empty lines.
// Table detection relies on line structure, which Normalize would erase.
func NormalizeLines(s string) string {
	s = norm.NFC.String(s)
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\u00a0' || r == '\u202f' || r == '\u2007' {
				return ' '
			}
			return r
		}, line)
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Hash returns the first 16 hex characters of the SHA-256 of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)[:16]
}

// Sentences splits normalized text into sentences using the default segmenter.
func Sentences(text string) []string {
	return Default().Split(text)
}
