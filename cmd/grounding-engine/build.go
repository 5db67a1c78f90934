// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build <tei-or-structure-files...>",
	Short: "Build blocks and sections from converted documents",
	Long: `Build parses GROBID TEI (.xml) or structure JSON (.json) files into
sections and blocks, filters noise, and replaces each document's stored
blocks. The document id is the file name without its suffix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	p := newPipeline(st)

	failed := 0
	for _, path := range args {
		sum, err := p.Build(cmd.Context(), path)
		if err != nil {
			fmt.Printf("failed  %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("built   %s: %d sections, %d blocks (%d noise dropped)\n",
			sum.DocumentID, sum.Sections, sum.Blocks, sum.NoiseDropped)
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed to build", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
