// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvester/internal/catalog"
	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the searchable paper catalog (sync, search, export)",
	Long: `Catalog maintains a local SQLite index of the harvested records with
full-text search over titles and abstracts. Use subcommands to sync the
index from the structured store, query it, or export it.`,
}

// --- sync subcommand ---

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index the structured store into the catalog",
	Long: `Sync reads the structured store and upserts every record into the
catalog's SQLite database. An unchanged store is skipped on subsequent
runs, keyed by the store file's modification time.`,
	RunE: runCatalogSync,
}

func runCatalogSync(cmd *cobra.Command, args []string) error {
	c, err := catalog.Open(catalogConfig(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	storePath := configString(cmd, "store", "catalog.store")
	st := store.New("", storePath, logger)

	_, err = c.Sync(cmd.Context(), st, os.Stdout)
	return err
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the catalog with full-text search and filters",
	Long: `Search runs an FTS5 full-text query over titles and abstracts, ranked
by relevance. Without a query it lists the catalog ordered by year and
title. A year filter can be combined with either form.`,
	RunE: runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	c, err := catalog.Open(catalogConfig(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")

	results, err := c.Search(cmd.Context(), catalog.QueryOptions{
		Query:      query,
		Year:       year,
		MaxResults: limit,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func formatSearchOutput(results []types.PaperRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-60s  %s\n", "Rank", "Year", "Title", "Authors")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, r := range results {
		title := r.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		authors := r.Authors
		if len(authors) > 36 {
			authors = authors[:33] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6d  %-60s  %s\n", i+1, r.Year, title, authors)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to YAML or JSON",
	Long: `Export writes the full catalog (or a filtered subset) to export.yaml or
export.json under the catalog directory. Supports the same query and
year filters as search for partial exports.`,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	c, err := catalog.Open(catalogConfig(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	query, _ := cmd.Flags().GetString("query")
	year, _ := cmd.Flags().GetInt("year")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := catalog.QueryOptions{Query: query, Year: year, MaxResults: limit}

	var path string
	switch format {
	case "yaml", "":
		path, err = c.ExportYAML(cmd.Context(), opts)
	case "json":
		path, err = c.ExportJSON(cmd.Context(), opts)
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

func catalogConfig(cmd *cobra.Command) types.CatalogConfig {
	return types.CatalogConfig{
		Dir:        configString(cmd, "catalog-dir", "catalog.dir"),
		MaxResults: configInt(cmd, "max-results", "catalog.max_results"),
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	catalogCmd.PersistentFlags().String("catalog-dir", "catalog", "directory for the catalog database and exports")
	catalogCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")

	// Sync flags.
	catalogSyncCmd.Flags().String("store", "dataset.json", "structured store to index")

	// Search flags.
	catalogSearchCmd.Flags().String("query", "", "full-text search query")
	catalogSearchCmd.Flags().Int("year", 0, "filter by proceedings year")
	catalogSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	catalogExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	catalogExportCmd.Flags().Int("year", 0, "year filter for partial export")
	catalogExportCmd.Flags().Int("limit", 0, "maximum entries to export (0 = all)")

	// Wire subcommands.
	catalogCmd.AddCommand(catalogSyncCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
