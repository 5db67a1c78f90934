// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/convert"
)

var runCmd = &cobra.Command{
	Use:   "run <files...>",
	Short: "Run the whole pipeline on documents",
	Long: `Run builds, indexes and extracts each document in turn and prints a
summary per document. TEI and structure JSON files are used as they are;
PDF files are converted with GROBID first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	var pdfs, docs []string
	for _, a := range args {
		if strings.EqualFold(filepath.Ext(a), ".pdf") {
			pdfs = append(pdfs, a)
		} else {
			docs = append(docs, a)
		}
	}

	failed := 0
	if len(pdfs) > 0 {
		g := convert.NewGROBIDConverter(cfg.Conversion, nil)
		res := convert.ConvertPaths(cmd.Context(), g, pdfs, cfg.Conversion.PapersDir, false, os.Stdout)
		failed += res.Failed
		docs = append(docs, res.Outputs...)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	br := newPipeline(st).RunPaths(cmd.Context(), docs, os.Stdout)
	failed += br.Failed
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
}
