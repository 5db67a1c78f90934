// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/grounding-engine/internal/doctree"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// structureSuffixes maps file suffixes to parsers, longest first.
var structureSuffixes = []struct {
	suffix string
	format string
}{
	{".tei.xml", "tei"},
	{".xml", "tei"},
	{".structure.json", "structure"},
	{".json", "structure"},
}

// DocumentID derives a document id from a converted file name by removing
// its directory and structure suffix: "papers/tei/2301.07041.tei.xml"
// becomes "2301.07041".
func DocumentID(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, s := range structureSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return base[:len(base)-len(s.suffix)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFile parses a TEI or structure JSON file, chosen by extension.
func ParseFile(path string) (*types.Document, error) {
	format := ""
	lower := strings.ToLower(path)
	for _, s := range structureSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			format = s.format
			break
		}
	}
	if format == "" {
		return nil, &doctree.StructuralError{Format: "file", Reason: "unsupported extension " + filepath.Ext(path)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close()

	if format == "tei" {
		return doctree.ParseTEI(f)
	}
	return doctree.ParseStructure(f)
}
