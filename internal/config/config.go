// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads pipeline settings and initializes logging.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/grounding-engine/pkg/types"
)

const (
	configName = "grounding-engine"
	envPrefix  = "GROUNDING_ENGINE"
)

// SetDefaults registers the default value of every configuration key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("build.chunking.max_chars", 1200)
	v.SetDefault("build.chunking.max_sentences", 10)
	v.SetDefault("build.chunking.overlap_sentences", 0)
	v.SetDefault("build.tables.min_text_len", 20)
	v.SetDefault("build.tables.min_rows", 3)
	v.SetDefault("build.tables.min_multi_space_rows", 2)
	v.SetDefault("build.tables.min_numeric_hits", 6)
	v.SetDefault("build.tables.min_total_numeric", 18)
	v.SetDefault("build.tables.min_grid_rows", 3)
	v.SetDefault("build.tables.min_grid_cols", 3)
	v.SetDefault("build.figures.max_caption_chars", 400)
	v.SetDefault("build.figures.max_caption_words", 80)
	v.SetDefault("build.figures.allow_inline_reference", true)
	v.SetDefault("build.include_front", true)
	v.SetDefault("build.include_back", false)

	v.SetDefault("noise.min_len", 20)
	v.SetDefault("noise.allow_short_types", []string{
		string(types.BlockTitle), string(types.BlockSectionTitle), string(types.BlockFigureCaption),
		string(types.BlockTableLabel), string(types.BlockEquation),
	})
	v.SetDefault("noise.drop_noise", true)

	v.SetDefault("embedding.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("embedding.model", "baai/bge-m3")
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.requests_per_second", 5.0)
	v.SetDefault("embedding.timeout", "120s")

	v.SetDefault("retrieval.top_k", 12)
	v.SetDefault("retrieval.neighbor_window", 1)
	v.SetDefault("retrieval.timeout", "30s")

	v.SetDefault("extraction.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("extraction.max_retries", 3)
	v.SetDefault("extraction.max_tokens", 4096)
	v.SetDefault("extraction.temperature", 0.2)
	v.SetDefault("extraction.requests_per_second", 2.0)
	v.SetDefault("extraction.timeout", "90s")
	v.SetDefault("extraction.max_section_chars", 8000)

	v.SetDefault("store.path", filepath.Join("knowledge", "index", "grounding.db"))
	v.SetDefault("store.export_dir", filepath.Join("knowledge", "export"))
	v.SetDefault("store.max_results", 20)
	v.SetDefault("store.upsert_batch_size", 64)

	v.SetDefault("conversion.grobid_url", "http://localhost:8070")
	v.SetDefault("conversion.grobid_image", "grobid/grobid:0.8.1")
	v.SetDefault("conversion.grobid_container", "grounding-engine-grobid")
	v.SetDefault("conversion.papers_dir", "papers")
	v.SetDefault("conversion.timeout", "180s")
	v.SetDefault("conversion.user_agent", "grounding-engine/0.1")

	v.SetDefault("run.workers", 4)
	v.SetDefault("run.summarize_sections", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from cfgFile (or grounding-engine.yaml in the
// working directory or ~/.config/grounding-engine), overlays GROUNDING_ENGINE_*
// environment variables, and returns the merged PipelineConfig. A missing
// config file is not an error.
func Load(cfgFile string) (*types.PipelineConfig, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects table thresholds that would promote empty grids.
func Validate(cfg types.PipelineConfig) error {
	positive := []struct {
		key string
		val int
	}{
		{"build.tables.min_rows", cfg.Build.Tables.MinRows},
		{"build.tables.min_grid_rows", cfg.Build.Tables.MinGridRows},
		{"build.tables.min_grid_cols", cfg.Build.Tables.MinGridCols},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return eris.Errorf("config: %s must be positive, got %d", p.key, p.val)
		}
	}
	return nil
}

// Defaults returns a PipelineConfig populated only from default values.
func Defaults() types.PipelineConfig {
	v := viper.New()
	SetDefaults(v)
	var cfg types.PipelineConfig
	// Unmarshal of the built-in defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// InitLogger replaces the global zap logger according to cfg.
func InitLogger(cfg types.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
