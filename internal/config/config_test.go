// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Build.Chunking.MaxChars)
	assert.Equal(t, 10, cfg.Build.Chunking.MaxSentences)
	assert.Equal(t, 3, cfg.Build.Tables.MinGridCols)
	assert.Equal(t, 400, cfg.Build.Figures.MaxCaptionChars)
	assert.True(t, cfg.Build.Figures.AllowInlineReference)
	assert.True(t, cfg.Build.IncludeFront)
	assert.Equal(t, 20, cfg.Noise.MinLen)
	assert.True(t, cfg.Noise.DropNoise)
	assert.Contains(t, cfg.Noise.AllowShortTypes, types.BlockFigureCaption)
	assert.Equal(t, "baai/bge-m3", cfg.Embedding.Model)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.Equal(t, 1, cfg.Retrieval.NeighborWindow)
	assert.Equal(t, 4096, cfg.Extraction.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 64, cfg.Store.UpsertBatchSize)
	assert.Equal(t, "http://localhost:8070", cfg.Conversion.GROBIDURL)
	assert.Equal(t, "grobid/grobid:0.8.1", cfg.Conversion.GROBIDImage)
	assert.Equal(t, "grounding-engine-grobid", cfg.Conversion.GROBIDContainer)
	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)

	yaml := []byte("retrieval:\n  top_k: 5\nrun:\n  workers: 2\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grounding-engine.yaml"), yaml, 0o644))
	t.Setenv("GROUNDING_ENGINE_RUN_WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 8, cfg.Run.Workers, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Retrieval.NeighborWindow, "unset keys keep defaults")
}

func TestLoadRejectsNonPositiveTableThresholds(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"zero rows", "build:\n  tables:\n    min_rows: 0\n", "build.tables.min_rows"},
		{"negative grid rows", "build:\n  tables:\n    min_grid_rows: -1\n", "build.tables.min_grid_rows"},
		{"zero grid cols", "build:\n  tables:\n    min_grid_cols: 0\n", "build.tables.min_grid_cols"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdirTemp(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "grounding-engine.yaml"), []byte(tt.yaml), 0o644))

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestLoadExplicitMissingFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Store.MaxResults)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LogConfig
		wantErr bool
	}{
		{name: "json info", cfg: types.LogConfig{Level: "info", Format: "json"}},
		{name: "console debug", cfg: types.LogConfig{Level: "debug", Format: "console"}},
		{name: "bad level", cfg: types.LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := zap.L()
			t.Cleanup(func() { zap.ReplaceGlobals(orig) })

			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotSame(t, orig, zap.L())
		})
	}
}
