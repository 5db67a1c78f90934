// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [pdfs...]",
	Short: "Convert PDF files to TEI XML with GROBID",
	Long: `Convert uploads PDF files to a GROBID service and writes the returned
TEI XML to <papers-dir>/tei/<name>.tei.xml. Existing outputs are skipped
unless --force is given. With --batch, every PDF in <papers-dir>/raw is
converted.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	papersDir, _ := cmd.Flags().GetString("papers-dir")
	if papersDir == "" {
		papersDir = cfg.Conversion.PapersDir
	}
	batch, _ := cmd.Flags().GetBool("batch")
	force, _ := cmd.Flags().GetBool("force")

	paths := args
	if batch {
		raw, err := convert.RawPDFs(papersDir)
		if err != nil {
			return err
		}
		paths = append(paths, raw...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDFs given: pass paths or use --batch")
	}

	g := convert.NewGROBIDConverter(cfg.Conversion, nil)
	if !g.Alive(cmd.Context()) {
		return fmt.Errorf("GROBID is not reachable at %s", cfg.Conversion.GROBIDURL)
	}

	result := convert.ConvertPaths(cmd.Context(), g, paths, papersDir, force, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed conversion", result.Failed)
	}
	return nil
}

func init() {
	convertCmd.Flags().String("papers-dir", "", "base directory for papers (default from config)")
	convertCmd.Flags().Bool("batch", false, "convert every PDF in <papers-dir>/raw")
	convertCmd.Flags().Bool("force", false, "overwrite existing TEI output")

	rootCmd.AddCommand(convertCmd)
}
