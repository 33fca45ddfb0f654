package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvester/internal/fetch"
	"github.com/pdiddy/paper-harvester/internal/harvest"
	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

const defaultUserAgent = "paper-harvester/0.1"

var harvestCmd = &cobra.Command{
	Use:   "harvest [years...]",
	Short: "Fetch paper metadata and PDFs for proceedings years",
	Long: `Harvest fetches the proceedings index for each year, extracts the title,
authors, abstract, and PDF link of every listed paper, downloads the PDF,
and appends a record to the CSV and JSON stores. Papers already stored
are skipped, so interrupted runs can be resumed by running again.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().Int("from", 0, "first year of an inclusive range")
	harvestCmd.Flags().Int("to", 0, "last year of an inclusive range")
	harvestCmd.Flags().String("base-url", harvest.DefaultBaseURL, "proceedings site base URL")
	harvestCmd.Flags().String("download-dir", "pdfs", "directory for downloaded PDFs")
	harvestCmd.Flags().String("csv", "dataset.csv", "tabular store path")
	harvestCmd.Flags().String("json", "dataset.json", "structured store path")
	harvestCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 300s)")
	harvestCmd.Flags().Int("retries", 0, "attempts per request (default 3)")
	harvestCmd.Flags().Duration("retry-delay", 0, "delay between retry attempts (default 5s)")
	harvestCmd.Flags().Duration("year-delay", harvest.DefaultYearDelay, "pause between consecutive years")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	years, err := parseYears(cmd, args)
	if err != nil {
		return err
	}

	cfg := types.HarvestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    configDuration(cmd, "timeout", "harvest.timeout"),
			UserAgent:  defaultUserAgent,
			Retries:    configInt(cmd, "retries", "harvest.retries"),
			RetryDelay: configDuration(cmd, "retry-delay", "harvest.retry_delay"),
		},
		BaseURL:     configString(cmd, "base-url", "harvest.base_url"),
		DownloadDir: configString(cmd, "download-dir", "harvest.download_dir"),
		CSVPath:     configString(cmd, "csv", "harvest.csv"),
		JSONPath:    configString(cmd, "json", "harvest.json"),
		YearDelay:   configDuration(cmd, "year-delay", "harvest.year_delay"),
	}

	st := store.New(cfg.CSVPath, cfg.JSONPath, logger)
	client := fetch.NewClient(cfg.HTTPConfig, logger)
	pipe := harvest.New(client, st, cfg, logger)

	sum, err := pipe.Run(cmd.Context(), years, os.Stdout)
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d paper(s) failed harvesting", sum.Failed)
	}
	return nil
}

// parseYears combines positional year arguments with the --from/--to range.
func parseYears(cmd *cobra.Command, args []string) ([]int, error) {
	var years []int
	for _, arg := range args {
		y, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", arg)
		}
		years = append(years, y)
	}

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	switch {
	case from != 0 && to != 0:
		if to < from {
			return nil, fmt.Errorf("--to %d is before --from %d", to, from)
		}
		for y := from; y <= to; y++ {
			years = append(years, y)
		}
	case from != 0 || to != 0:
		return nil, fmt.Errorf("--from and --to must be given together")
	}

	if len(years) == 0 {
		return nil, fmt.Errorf("provide one or more years, or --from and --to")
	}

	// Years repeated across args and the range collapse to one pass.
	sort.Ints(years)
	deduped := years[:1]
	for _, y := range years[1:] {
		if y != deduped[len(deduped)-1] {
			deduped = append(deduped, y)
		}
	}
	return deduped, nil
}
