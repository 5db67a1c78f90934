// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

func tableCfg() types.TableDetectionConfig {
	return types.TableDetectionConfig{
		MinTextLen:        20,
		MinRows:           3,
		MinMultiSpaceRows: 2,
		MinNumericHits:    6,
		MinTotalNumeric:   18,
		MinGridRows:       3,
		MinGridCols:       3,
	}
}

func figureCfg() types.FigureDetectionConfig {
	return types.FigureDetectionConfig{MaxCaptionChars: 400, MaxCaptionWords: 80, AllowInlineReference: true}
}

func TestDetectTable(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantRows int
		wantCols int
	}{
		{
			name:     "three row numeric grid",
			text:     "A  1.2  3.4\nB  5.6  7.8\nC  9.0  1.1",
			wantOK:   true,
			wantRows: 3,
			wantCols: 3,
		},
		{
			name:   "prose paragraph",
			text:   "Cells were incubated for 24 h at 37 C. Lysates were cleared by centrifugation and analysed by western blot.",
			wantOK: false,
		},
		{
			name:   "too short",
			text:   "A  1  2",
			wantOK: false,
		},
		{
			name:   "two rows only",
			text:   "A  1.2  3.4  5.5\nB  5.6  7.8  9.9",
			wantOK: false,
		},
		{
			name:   "ragged grid",
			text:   "A  1.2  3.4\nB  5.6\nC  9.0  1.1  4.4",
			wantOK: false,
		},
		{
			name:   "two columns",
			text:   "A  1.2 3.4\nB  5.6 7.8\nC  9.0 1.1",
			wantOK: false,
		},
		{
			name:     "iteration markers on one line",
			text:     "Run log ITERATION=1  0.50  0.40 ITERATION=2  0.45  0.38 ITERATION=3  0.41  0.35",
			wantOK:   true,
			wantRows: 3,
			wantCols: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, ok := DetectTable(tt.text, tableCfg())
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			if tt.wantRows > 0 {
				assert.Equal(t, tt.wantRows, tbl.NumRows())
			}
			if tt.wantCols > 0 {
				assert.Equal(t, tt.wantCols, tbl.NumCols())
			}
		})
	}
}

func TestDetectTableZeroThresholds(t *testing.T) {
	cfg := types.TableDetectionConfig{MinTextLen: 20, MinTotalNumeric: 6}
	texts := []string{
		"values 1 2 3\nmore 4 5 6\nand 7 8 9 here",
		"plain words without any numbers at all",
	}
	for _, text := range texts {
		assert.NotPanics(t, func() {
			_, ok := DetectTable(text, cfg)
			assert.False(t, ok, text)
		})
	}
}

func TestDetectTableIsDeterministic(t *testing.T) {
	text := "A  1.2  3.4\nB  5.6  7.8\nC  9.0  1.1"
	a, ok := DetectTable(text, tableCfg())
	require.True(t, ok)
	b, _ := DetectTable(text, tableCfg())
	assert.Equal(t, a.Markdown(), b.Markdown())
	assert.Equal(t, "| A | 1.2 | 3.4 |\n| --- | --- | --- |\n| B | 5.6 | 7.8 |\n| C | 9.0 | 1.1 |", a.Markdown())
}

func TestSplitPseudoRows(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "  ", want: nil},
		{name: "lines", in: "a\r\n\n b \nc", want: []string{"a", "b", "c"}},
		{name: "single line no markers", in: "just text", want: []string{"just text"}},
		{
			name: "iteration markers",
			in:   "Header ITERATION=1 x ITERATION=2 y ITERATION = 3 z",
			want: []string{"Header", "ITERATION=1 x", "ITERATION=2 y", "ITERATION = 3 z"},
		},
		{
			name: "two markers are not enough",
			in:   "ITERATION=1 x ITERATION=2 y",
			want: []string{"ITERATION=1 x ITERATION=2 y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPseudoRows(tt.in))
		})
	}
}

func TestTableMarkdown(t *testing.T) {
	tbl := NewTable([][]string{{"Protein", "Kd (nM)"}, {"WT", "12"}, {}, {"K45A|R", "150", "x"}})
	want := "| Protein | Kd (nM) |  |\n| --- | --- | --- |\n| WT | 12 |  |\n| K45A\\|R | 150 | x |"
	assert.Equal(t, want, tbl.Markdown())
	assert.Equal(t, "", Table{}.Markdown())
	assert.Equal(t, "| only |", NewTable([][]string{{"only"}}).Markdown())
}

func TestTableLabel(t *testing.T) {
	label, ok := TableLabel("Summary of binding, see table 03 for details")
	require.True(t, ok)
	assert.Equal(t, "Table 3", label)

	_, ok = TableLabel("no reference")
	assert.False(t, ok)
}

func TestDetectFigureCaption(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		cfg       types.FigureDetectionConfig
		wantOK    bool
		wantLabel string
	}{
		{name: "caption start", text: "Figure 2: cell viability assay", cfg: figureCfg(), wantOK: true, wantLabel: "Figure 2"},
		{name: "abbreviated start", text: "Fig. 3b. Binding curves for WT and mutant.", cfg: figureCfg(), wantOK: true, wantLabel: "Figure 3b"},
		{name: "dash separator", text: "FIGURE 10 - Overview", cfg: figureCfg(), wantOK: true, wantLabel: "Figure 10"},
		{name: "inline reference with colon", text: "Overview (Figure 1): workflow of the assay", cfg: figureCfg(), wantOK: true, wantLabel: "Figure 1"},
		{
			name:   "inline reference without colon",
			text:   "As shown in Figure 1 the signal increases.",
			cfg:    figureCfg(),
			wantOK: false,
		},
		{
			name:   "inline disabled",
			text:   "Overview (Figure 1): workflow of the assay",
			cfg:    types.FigureDetectionConfig{MaxCaptionChars: 400, MaxCaptionWords: 80},
			wantOK: false,
		},
		{
			name:   "too many words",
			text:   "Figure 1: " + strings.Repeat("word ", 90),
			cfg:    figureCfg(),
			wantOK: false,
		},
		{
			name:   "too long",
			text:   "Figure 1: " + strings.Repeat("x", 500),
			cfg:    figureCfg(),
			wantOK: false,
		},
		{name: "empty", text: "   ", cfg: figureCfg(), wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caption, label, ok := DetectFigureCaption(tt.text, tt.cfg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantLabel, label)
				assert.NotEmpty(t, caption)
			}
		})
	}
}
