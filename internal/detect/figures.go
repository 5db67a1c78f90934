// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"regexp"
	"strings"

	"github.com/pdiddy/grounding-engine/internal/textnorm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

var (
	figRefRe       = regexp.MustCompile(`(?i)\b(?:Fig\.|Figure)\s*(\d+[A-Za-z]?)\b`)
	captionStartRe = regexp.MustCompile(`(?i)^\s*(?:Fig\.|Figure)\s*\d+[A-Za-z]?\s*[:.\-]\s*`)
)

// inlineRefWindow is how far into the text a colon must appear for an
// inline figure reference to count as a caption.
const inlineRefWindow = 40

// FigureLabel returns "Figure N" for the first figure reference in text.
func FigureLabel(text string) (string, bool) {
	m := figRefRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "Figure " + m[1], true
}

// DetectFigureCaption reports whether text is a figure caption. It returns
// the normalized caption and its label (empty when none is found).
func DetectFigureCaption(text string, cfg types.FigureDetectionConfig) (caption, label string, ok bool) {
	t := textnorm.Normalize(text)
	if t == "" || len(t) > cfg.MaxCaptionChars {
		return "", "", false
	}
	if len(strings.Fields(t)) > cfg.MaxCaptionWords {
		return "", "", false
	}

	if captionStartRe.MatchString(t) {
		label, _ = FigureLabel(t)
		return t, label, true
	}

	if cfg.AllowInlineReference {
		head := t
		if len(head) > inlineRefWindow {
			head = head[:inlineRefWindow]
		}
		if l, found := FigureLabel(t); found && strings.Contains(head, ":") {
			return t, l, true
		}
	}
	return "", "", false
}
