// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index <document-ids...>",
	Short: "Embed the blocks of built documents",
	Long: `Index embeds every block whose stored vector is missing or stale and
writes it to the vector index. Blocks with unchanged text, section and
position keep their vectors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
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
		if err := p.Index(cmd.Context(), sum); err != nil {
			return err
		}
		if sum.IndexError != "" {
			fmt.Printf("failed  %s: %s\n", id, sum.IndexError)
			failed++
			continue
		}
		fmt.Printf("indexed %s: %d embedded, %d reused\n", id, sum.Embedded, sum.Reused)
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed indexing", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
