// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the grounding-engine CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/grounding-engine/internal/config"
	"github.com/pdiddy/grounding-engine/internal/embed"
	"github.com/pdiddy/grounding-engine/internal/llm"
	"github.com/pdiddy/grounding-engine/internal/pipeline"
	"github.com/pdiddy/grounding-engine/internal/secrets"
	"github.com/pdiddy/grounding-engine/internal/store"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the merged configuration, loaded before every command runs.
var cfg *types.PipelineConfig

// rootCmd is the base command for the grounding-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "grounding-engine",
	Short: "Evidence-grounded extraction from scientific papers",
	Long: `grounding-engine turns converted scientific papers into addressable text
blocks and extracts structured items whose every value cites the blocks it
came from.

The stages are subcommands: convert (PDF to TEI via GROBID), build (blocks),
index (block embeddings), extract (candidates, evidence and items) and run
(all of them). Items are queried with "items search" and "items export".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			loaded.Log.Level = lvl
		}
		if err := config.InitLogger(loaded.Log); err != nil {
			return err
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		secrets.Apply(loaded, s)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			zap.L().Debug("loaded secrets", zap.Strings("keys", keys))
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./grounding-engine.yaml or ~/.config/grounding-engine/grounding-engine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// openStore opens the configured SQLite store.
func openStore() (*store.Store, error) {
	return store.Open(cfg.Store)
}

// newPipeline wires the configured model and embedder to st.
func newPipeline(st *store.Store) *pipeline.Pipeline {
	backend := llm.NewAnthropicBackend(cfg.Extraction.AIConfig)
	embedder := embed.NewOpenAIEmbedder(cfg.Embedding, nil)
	return pipeline.New(*cfg, st, embedder, backend)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = zap.L().Sync()
	if err != nil {
		os.Exit(1)
	}
}
