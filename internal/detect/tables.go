// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package detect holds the heuristics that reclassify paragraph-shaped text
// as a table or a figure caption. Every threshold comes from configuration;
// when a check is inconclusive the text is left as a paragraph.
package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

var (
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
	tableRefRe   = regexp.MustCompile(`(?i)\bTable\s+(\d+)\b`)
	iterMarkRe   = regexp.MustCompile(`(?i)\bITERATION\s*=\s*\d+\b`)
	percentRe    = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*%`)
	numLikeRe    = regexp.MustCompile(`\b-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?\b`)
	cellSplitRe  = regexp.MustCompile(`\s{2,}|\t`)
)

// rowMarkers split single-line text into pseudo-rows when at least three
// markers repeat.
var rowMarkers = []*regexp.Regexp{iterMarkRe}

// prefilterRowWindow is how many leading rows the prefilter inspects.
const prefilterRowWindow = 12

// keepRowMinNumbers is the number of numeric tokens that qualifies a row
// without a column gap.
const keepRowMinNumbers = 6

// Table is a parsed rectangular grid. Rows[0] is the header.
type Table struct {
	Rows [][]string
}

// NumRows returns the number of rows including the header.
func (t Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t Table) NumCols() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}

// Markdown renders the table as a pipe table. The first row is the header.
func (t Table) Markdown() string {
	if len(t.Rows) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", `\|`))
			b.WriteString(" |")
		}
	}
	writeRow(t.Rows[0])
	if len(t.Rows) > 1 {
		b.WriteString("\n|")
		for range t.Rows[0] {
			b.WriteString(" --- |")
		}
		for _, row := range t.Rows[1:] {
			b.WriteString("\n")
			writeRow(row)
		}
	}
	return b.String()
}

// NewTable builds a Table from structured cells, padding short rows so the
// grid is rectangular. Empty rows are dropped.
func NewTable(rows [][]string) Table {
	width := 0
	var kept [][]string
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		kept = append(kept, r)
		if len(r) > width {
			width = len(r)
		}
	}
	out := make([][]string, len(kept))
	for i, r := range kept {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return Table{Rows: out}
}

// TableLabel returns "Table N" for the first table reference in text.
func TableLabel(text string) (string, bool) {
	m := tableRefRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return "Table " + strconv.Itoa(n), true
}

// SplitPseudoRows splits text into candidate table rows. Multi-line text is
// split on lines; single-line text is split on repeating row markers.
func SplitPseudoRows(raw string) []string {
	raw = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "\r\n", "\n"), "\r", "\n"))
	if raw == "" {
		return nil
	}

	var lines []string
	for _, ln := range strings.Split(raw, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) >= 2 {
		return lines
	}

	s := lines[0]
	for _, rx := range rowMarkers {
		hits := rx.FindAllStringIndex(s, -1)
		if len(hits) < 3 {
			continue
		}
		var rows []string
		if header := strings.TrimSpace(s[:hits[0][0]]); header != "" {
			rows = append(rows, header)
		}
		for i, h := range hits {
			end := len(s)
			if i+1 < len(hits) {
				end = hits[i+1][0]
			}
			rows = append(rows, strings.TrimSpace(s[h[0]:end]))
		}
		return rows
	}
	return []string{s}
}

// Prefilter is the cheap check run before parsing a grid.
func Prefilter(text string, cfg types.TableDetectionConfig) bool {
	if len(text) < cfg.MinTextLen {
		return false
	}
	if len(iterMarkRe.FindAllStringIndex(text, -1)) >= 3 {
		return true
	}

	rows := SplitPseudoRows(text)
	if len(rows) < cfg.MinRows {
		return false
	}

	window := rows
	if len(window) > prefilterRowWindow {
		window = window[:prefilterRowWindow]
	}
	multiSpaceRows, numericHits := 0, 0
	for _, r := range window {
		if multiSpaceRe.MatchString(r) {
			multiSpaceRows++
		}
		numericHits += countMatches(numLikeRe, r)
	}
	if multiSpaceRows >= cfg.MinMultiSpaceRows && numericHits >= cfg.MinNumericHits {
		return true
	}

	total := countMatches(numLikeRe, text) + countMatches(percentRe, text)
	return total >= cfg.MinTotalNumeric && len(rows) >= 3
}

// DetectTable reports whether text is a table and returns the parsed grid.
// text must keep its line structure (see textnorm.NormalizeLines).
func DetectTable(text string, cfg types.TableDetectionConfig) (Table, bool) {
	if !Prefilter(text, cfg) {
		return Table{}, false
	}

	var kept []string
	for _, r := range SplitPseudoRows(text) {
		nums := countMatches(numLikeRe, r) + countMatches(percentRe, r)
		if multiSpaceRe.MatchString(r) || nums >= keepRowMinNumbers || iterMarkRe.MatchString(r) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 || len(kept) < cfg.MinRows {
		return Table{}, false
	}

	grid := make([][]string, 0, len(kept))
	for _, r := range kept {
		var cells []string
		for _, c := range cellSplitRe.Split(r, -1) {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		grid = append(grid, cells)
	}

	// Ragged grids are not tables.
	width := len(grid[0])
	if width == 0 {
		return Table{}, false
	}
	for _, row := range grid[1:] {
		if len(row) != width {
			return Table{}, false
		}
	}
	if len(grid) < cfg.MinGridRows || width < cfg.MinGridCols {
		return Table{}, false
	}
	return Table{Rows: grid}, true
}

func countMatches(re *regexp.Regexp, s string) int {
	return len(re.FindAllStringIndex(s, -1))
}
