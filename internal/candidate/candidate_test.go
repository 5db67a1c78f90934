// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

func cand(label string, kind types.ItemKind, anchors, hints, sources []string) types.Candidate {
	return types.Candidate{
		ID:               CandidateID("s1", label, ""),
		SectionID:        "s1",
		Label:            label,
		ProposedItemKind: kind,
		Anchors:          anchors,
		EvidenceHints:    hints,
		SourceBlockIDs:   sources,
	}
}

func TestMerge(t *testing.T) {
	in := []types.Candidate{
		cand("SPR binding", types.ItemExperiment, []string{"a1"}, []string{"KD"}, []string{"b_1"}),
		cand("ELISA", types.ItemMethod, nil, []string{"plate"}, []string{"b_2"}),
		cand("  spr BINDING ", "EXPERIMENT", []string{"a2", "a1"}, []string{"KD", "nM"}, []string{"b_3"}),
		cand("SPR binding", types.ItemClaim, nil, nil, []string{"b_4"}),
	}

	got := Merge(in)

	require.Len(t, got, 3)
	assert.Equal(t, "SPR binding", got[0].Label)
	assert.Equal(t, in[0].ID, got[0].ID, "first occurrence is the representative")
	assert.Equal(t, []string{"a1", "a2"}, got[0].Anchors)
	assert.Equal(t, []string{"KD", "nM"}, got[0].EvidenceHints)
	assert.Equal(t, []string{"b_1", "b_3"}, got[0].SourceBlockIDs)
	assert.Equal(t, "ELISA", got[1].Label)
	assert.Equal(t, types.ItemClaim, got[2].ProposedItemKind)

	assert.Equal(t, []string{"a1"}, in[0].Anchors, "input is not modified")
}

func TestMergeEmpty(t *testing.T) {
	assert.Nil(t, Merge(nil))
}

func randomCandidates(r *rand.Rand, n int) []types.Candidate {
	labels := []string{"SPR", "spr ", "ELISA", "Western blot", "western BLOT"}
	kinds := []types.ItemKind{types.ItemExperiment, types.ItemMethod, "Experiment"}
	pick := func(prefix string) []string {
		var out []string
		for i := 0; i < r.Intn(4); i++ {
			out = append(out, fmt.Sprintf("%s%d", prefix, r.Intn(5)))
		}
		return out
	}
	out := make([]types.Candidate, n)
	for i := range out {
		out[i] = types.Candidate{
			ID:               fmt.Sprintf("cand_%d", i),
			Label:            labels[r.Intn(len(labels))],
			ProposedItemKind: kinds[r.Intn(len(kinds))],
			Anchors:          pick("a"),
			EvidenceHints:    pick("h"),
			SourceBlockIDs:   pick("b_"),
		}
	}
	return out
}

func TestMergeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		in := randomCandidates(r, r.Intn(12))
		once := Merge(in)
		assert.Equal(t, once, Merge(once))
	}
}

func TestMergePreservesEvidence(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		in := randomCandidates(r, 1+r.Intn(12))
		merged := make(map[string]types.Candidate)
		for _, c := range Merge(in) {
			merged[MergeKey(c)] = c
		}
		for _, c := range in {
			rep, ok := merged[MergeKey(c)]
			require.True(t, ok)
			assert.Subset(t, rep.SourceBlockIDs, c.SourceBlockIDs)
			assert.Subset(t, rep.Anchors, c.Anchors)
			assert.Subset(t, rep.EvidenceHints, c.EvidenceHints)
		}
	}
}

func block(i int, text string) types.Block {
	return types.Block{ID: fmt.Sprintf("b_%02d", i), SectionID: "s1", Type: types.BlockParagraph, Text: text, BlockIndex: i}
}

func TestSignalScore(t *testing.T) {
	assert.Equal(t, 0, SignalScore("Plain introductory prose."))
	assert.Equal(t, 2, SignalScore("The ELISA assay was run."))
	assert.Equal(t, 1, SignalScore("1 2 3 4 5"))
}

func TestGlimpse(t *testing.T) {
	var bs []types.Block
	for i := 0; i < 12; i++ {
		bs = append(bs, block(i, "Background prose."))
	}
	bs[5].Text = "We measured binding by SPR; n=3, p<0.05."
	bs[7].Text = "Western blot quantified expression."

	got := Glimpse(bs)

	var ids []string
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"b_00", "b_01", "b_02", "b_09", "b_10", "b_11", "b_05", "b_07"}, ids)
}

func TestGlimpseSmallSection(t *testing.T) {
	bs := []types.Block{block(1, "b"), block(0, "a")}
	got := Glimpse(bs)
	require.Len(t, got, 2)
	assert.Equal(t, "b_00", got[0].ID)
	assert.Nil(t, Glimpse(nil))
}

func TestCandidateID(t *testing.T) {
	id := CandidateID("s_1", "SPR", "binding")
	assert.True(t, strings.HasPrefix(id, "cand_"))
	assert.Len(t, id, 17)
	assert.Equal(t, id, CandidateID("s_1", "SPR", "binding"))
	assert.NotEqual(t, id, CandidateID("s_2", "SPR", "binding"))
}

func proposer(reply string, err error, seen *llm.Request) *Proposer {
	backend := llm.BackendFunc(func(_ context.Context, req llm.Request) (string, error) {
		if seen != nil {
			*seen = req
		}
		return reply, err
	})
	return NewProposer(backend, types.ExtractionConfig{AIConfig: types.AIConfig{Temperature: 0.2}})
}

func TestPropose(t *testing.T) {
	section := types.Section{ID: "s_abc", Title: "Binding"}
	bs := []types.Block{block(0, "SPR was used."), block(1, "KD was 5 nM.")}

	tests := []struct {
		name   string
		reply  string
		labels []string
	}{
		{
			name:   "array",
			reply:  `[{"label":"SPR binding","summary":"KD measured","proposed_item_kind":"experiment","evidence_block_ids":["b_01"],"evidence_hints":["KD"],"confidence":0.8}]`,
			labels: []string{"SPR binding"},
		},
		{
			name:   "items wrapper in code fence",
			reply:  "```json\n{\"items\":[{\"label\":\"SPR\",\"proposed_item_kind\":\"method\"}]}\n```",
			labels: []string{"SPR"},
		},
		{
			name:   "invalid elements skipped",
			reply:  `[{"label":"","proposed_item_kind":"method"},{"summary":"no label","proposed_item_kind":"claim"},{"label":"ok","proposed_item_kind":"claim","confidence":3}, {"label":"kept","proposed_item_kind":"claim"}]`,
			labels: []string{"kept"},
		},
		{
			name:  "empty array",
			reply: `[]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req llm.Request
			got, err := proposer(tt.reply, nil, &req).Propose(context.Background(), section, bs)
			require.NoError(t, err)

			var labels []string
			for _, c := range got {
				labels = append(labels, c.Label)
				assert.Equal(t, "s_abc", c.SectionID)
				assert.Equal(t, CandidateID("s_abc", c.Label, c.Summary), c.ID)
			}
			assert.Equal(t, tt.labels, labels)
			assert.Contains(t, req.Prompt, "SECTION_ID: s_abc")
			assert.Contains(t, req.Prompt, `"block_id":"b_01"`)
		})
	}
}

func TestProposeSourcesAndKind(t *testing.T) {
	bs := []types.Block{block(0, "SPR was used."), block(1, "KD was 5 nM.")}
	reply := `[
		{"label":"A","proposed_item_kind":"Experiment","evidence_block_ids":["b_01","b_99"]},
		{"label":"B","proposed_item_kind":"experiment|method","evidence_block_ids":["b_99"]}
	]`
	got, err := proposer(reply, nil, nil).Propose(context.Background(), types.Section{ID: "s1"}, bs)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, types.ItemExperiment, got[0].ProposedItemKind)
	assert.Equal(t, []string{"b_01"}, got[0].SourceBlockIDs)
	assert.Equal(t, types.ItemClaim, got[1].ProposedItemKind)
	assert.Equal(t, []string{"b_00", "b_01"}, got[1].SourceBlockIDs)
}

func TestProposeAll(t *testing.T) {
	sections := []types.Section{{ID: "s1"}, {ID: "s2"}, {ID: "empty"}}
	bs := []types.Block{block(0, "x"), {ID: "b_10", SectionID: "s2", Text: "y", BlockIndex: 10}}

	calls := 0
	backend := llm.BackendFunc(func(_ context.Context, req llm.Request) (string, error) {
		calls++
		if strings.Contains(req.Prompt, "SECTION_ID: s2") {
			return "", errors.New("boom")
		}
		return `[{"label":"L","proposed_item_kind":"claim"}]`, nil
	})
	p := NewProposer(backend, types.ExtractionConfig{})

	got, failed := p.ProposeAll(context.Background(), sections, bs)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, failed)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SectionID)
}
