// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/grounding-engine/internal/store"
	"github.com/pdiddy/grounding-engine/pkg/types"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Query and export admitted items",
}

// --- search subcommand ---

var itemsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search items with full-text search and filters",
	Long: `Search finds admitted items by FTS5 full-text search over labels and
summaries, optionally filtered by kind, document and minimum coverage.`,
	RunE: runItemsSearch,
}

func runItemsSearch(cmd *cobra.Command, args []string) error {
	q, err := itemQueryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	if q.Query == "" && q.Kind == "" && q.DocumentID == "" && q.MinCoverage == "" {
		return fmt.Errorf("query or filter required: provide a search query, --kind, --document, or --min-coverage")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.SearchItems(cmd.Context(), q)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatItems(items, jsonOutput)
}

func formatItems(items []types.Item, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-15s  %-50s  %-20s  %s\n",
		"Rank", "Kind", "Label", "Document", "Coverage")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, it := range items {
		fmt.Fprintf(os.Stdout, "%-4d  %-15s  %-50s  %-20s  %s\n",
			i+1, it.Kind, clip(it.Label.String(), 50), clip(it.DocumentID, 20), it.Grounding.CoverageLevel)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(items))
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// --- export subcommand ---

var itemsExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export items to YAML or JSON",
	Long: `Export writes all items (or a filtered subset) to items.yaml or
items.json in the configured export directory. Supports the same filter
flags as search.`,
	RunE: runItemsExport,
}

func runItemsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	q, err := itemQueryFromFlags(cmd, args)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var path string
	switch format {
	case "yaml", "":
		path, err = st.ExportYAML(cmd.Context(), q)
	case "json":
		path, err = st.ExportJSON(cmd.Context(), q)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func itemQueryFromFlags(cmd *cobra.Command, args []string) (store.ItemQuery, error) {
	kind, _ := cmd.Flags().GetString("kind")
	doc, _ := cmd.Flags().GetString("document")
	cov, _ := cmd.Flags().GetString("min-coverage")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	q := store.ItemQuery{
		Query:       strings.Join(args, " "),
		Kind:        types.ItemKind(kind),
		DocumentID:  doc,
		MinCoverage: types.CoverageLevel(cov),
		MaxResults:  maxResults,
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return q, fmt.Errorf("unknown item kind %q", kind)
	}
	if q.MinCoverage != "" && q.MinCoverage.Rank() < 0 {
		return q, fmt.Errorf("unknown coverage level %q", cov)
	}
	return q, nil
}

func addItemFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "filter by item kind (experiment, method, claim, dataset, resource, negative_result)")
	cmd.Flags().String("document", "", "filter by document id")
	cmd.Flags().String("min-coverage", "", "minimum coverage level (L1_protocol, L2_design, L3_results)")
}

func init() {
	addItemFilterFlags(itemsSearchCmd)
	itemsSearchCmd.Flags().Int("max-results", 0, "maximum number of results (default from config)")
	itemsSearchCmd.Flags().Bool("json", false, "output results as JSON")

	addItemFilterFlags(itemsExportCmd)
	itemsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	itemsCmd.AddCommand(itemsSearchCmd, itemsExportCmd)
	rootCmd.AddCommand(itemsCmd)
}
