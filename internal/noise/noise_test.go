// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package noise

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

var allowShort = []types.BlockType{
	types.BlockTitle, types.BlockSectionTitle, types.BlockFigureCaption, types.BlockTableLabel, types.BlockEquation,
}

func TestIsNoise(t *testing.T) {
	tests := []struct {
		name string
		text string
		typ  types.BlockType
		want types.BlockFlags
	}{
		{"empty", "   ", types.BlockParagraph, types.BlockFlags{IsEmpty: true, IsNoise: true}},
		{"punctuation", "!!! ???", types.BlockParagraph, types.BlockFlags{IsPunctOnly: true, IsShort: true, IsNoise: true}},
		{"page number", "12", types.BlockParagraph, types.BlockFlags{IsNumericOnly: true, IsShort: true, IsNoise: true}},
		{"numeric run", "1.2, 3.4, 5.6 +- 0.1, 42 %, 17, 18", types.BlockParagraph, types.BlockFlags{IsNumericOnly: true, IsNoise: true}},
		{"rule line", "==========================", types.BlockParagraph, types.BlockFlags{IsDashOnly: true, IsPunctOnly: true, IsNoise: true}},
		{"spaced rule", "- - - - - - - - - - - - - -", types.BlockParagraph, types.BlockFlags{IsDashOnly: true, IsPunctOnly: true, IsNoise: true}},
		{"short paragraph", "See above.", types.BlockParagraph, types.BlockFlags{IsShort: true, IsNoise: true}},
		{"short heading allowed", "Methods", types.BlockSectionTitle, types.BlockFlags{}},
		{"short equation allowed", "y = ax", types.BlockEquation, types.BlockFlags{}},
		{"real paragraph", "Cells were incubated for 24 h at 37 C.", types.BlockParagraph, types.BlockFlags{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNoise(tt.text, tt.typ, 20, allowShort))
		})
	}
}

func TestDashRunsAreAlwaysNoise(t *testing.T) {
	const alphabet = "-_.="
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		n := 2 + rng.Intn(40)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		s := b.String()
		for _, minLen := range []int{0, 1, 5, 100} {
			for _, typ := range []types.BlockType{types.BlockParagraph, types.BlockEquation} {
				f := IsNoise(s, typ, minLen, allowShort)
				require.True(t, f.IsNoise, "%q minLen=%d type=%s", s, minLen, typ)
				require.True(t, f.IsDashOnly, "%q", s)
			}
		}
	}
}

func TestIsNoiseIsDeterministic(t *testing.T) {
	text := "---- 12 ----"
	first := IsNoise(text, types.BlockParagraph, 20, allowShort)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IsNoise(text, types.BlockParagraph, 20, allowShort))
	}
}

func TestIsExperimentCandidate(t *testing.T) {
	assert.True(t, IsExperimentCandidate("The binding assay was run in triplicate.", types.BlockParagraph))
	assert.True(t, IsExperimentCandidate("Samples were centrifuged at 4 C.", types.BlockAbstract))
	assert.False(t, IsExperimentCandidate("The binding assay was run in triplicate.", types.BlockSectionTitle))
	assert.False(t, IsExperimentCandidate("Prior work discussed this topic at length.", types.BlockParagraph))
}

func testBlocks() []types.Block {
	return []types.Block{
		{ID: "b_1", SectionID: "s_1", Type: types.BlockSectionTitle, Text: "Methods"},
		{ID: "b_2", SectionID: "s_1", Type: types.BlockParagraph, Text: "The binding assay was run in triplicate."},
		{ID: "b_3", SectionID: "s_1", Type: types.BlockParagraph, Text: "-----"},
		{ID: "b_4", SectionID: "s_1", Type: types.BlockParagraph, Text: "17"},
	}
}

func TestFilter(t *testing.T) {
	cfg := types.NoiseConfig{MinLen: 20, AllowShortTypes: allowShort, DropNoise: true}
	kept, dropped := Filter(testBlocks(), cfg)
	require.Len(t, kept, 2)
	require.Len(t, dropped, 2)
	assert.Equal(t, "b_1", kept[0].ID)
	assert.True(t, kept[1].Flags.IsExperimentCandidate)
	assert.True(t, dropped[0].Flags.IsDashOnly)
	assert.True(t, dropped[1].Flags.IsNumericOnly)

	sections := PruneSections([]types.Section{{ID: "s_1", BlockIDs: []string{"b_1", "b_2", "b_3", "b_4"}}}, dropped)
	assert.Equal(t, []string{"b_1", "b_2"}, sections[0].BlockIDs)
}

func TestFilterKeepsFlaggedWhenNotDropping(t *testing.T) {
	cfg := types.NoiseConfig{MinLen: 20, AllowShortTypes: allowShort, DropNoise: false}
	kept, dropped := Filter(testBlocks(), cfg)
	assert.Len(t, kept, 4)
	assert.Empty(t, dropped)
	assert.True(t, kept[2].Flags.IsNoise)
	assert.False(t, kept[0].Flags.IsNoise)
}
