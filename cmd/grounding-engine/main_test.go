// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

func TestHostPort(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"http://localhost:8070", 8070},
		{"http://grobid:9000/", 9000},
		{"http://grobid", grobidPort},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := hostPort(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemQueryFromFlags(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{}
		addItemFilterFlags(c)
		c.Flags().Int("max-results", 0, "")
		return c
	}

	c := newCmd()
	require.NoError(t, c.Flags().Parse([]string{"--kind", "experiment", "--min-coverage", "L2_design", "--max-results", "5"}))
	q, err := itemQueryFromFlags(c, []string{"SPR", "binding"})
	require.NoError(t, err)
	assert.Equal(t, "SPR binding", q.Query)
	assert.Equal(t, types.ItemExperiment, q.Kind)
	assert.Equal(t, types.CoverageDesign, q.MinCoverage)
	assert.Equal(t, 5, q.MaxResults)

	c = newCmd()
	require.NoError(t, c.Flags().Parse([]string{"--kind", "theorem"}))
	_, err = itemQueryFromFlags(c, nil)
	assert.Error(t, err)

	c = newCmd()
	require.NoError(t, c.Flags().Parse([]string{"--min-coverage", "L9"}))
	_, err = itemQueryFromFlags(c, nil)
	assert.Error(t, err)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}
