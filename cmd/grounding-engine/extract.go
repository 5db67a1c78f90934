// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract <document-ids...>",
	Short: "Extract evidence-grounded items from indexed documents",
	Long: `Extract asks the language model for candidate items section by section,
merges duplicates, retrieves evidence blocks for each candidate, extracts a
typed item and admits it only when its values cite valid evidence. The
document's stored items are replaced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	summarize, _ := cmd.Flags().GetBool("summarize")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	p := newPipeline(st)

	failed := 0
	for _, id := range args {
		if _, err := st.GetDocument(cmd.Context(), id); err != nil {
			fmt.Printf("failed  %s: %v\n", id, err)
			failed++
			continue
		}
		sum := &pipeline.Summary{DocumentID: id}
		if summarize || cfg.Run.SummarizeSections {
			if err := p.Summarize(cmd.Context(), sum); err != nil {
				return err
			}
		}
		if _, err := p.Extract(cmd.Context(), sum); err != nil {
			return err
		}
		sum.Print(os.Stdout)
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) not found", failed)
	}
	return nil
}

func init() {
	extractCmd.Flags().Bool("summarize", false, "summarize sections before extraction")

	rootCmd.AddCommand(extractCmd)
}
