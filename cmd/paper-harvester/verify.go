package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check downloaded PDFs against the structured store",
	Long: `Verify confirms that every stored record with a PDF link has a readable
PDF in the download directory. It reports missing and unreadable files
and never modifies the stores or the downloads.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().String("store", "dataset.json", "structured store to check against")
	verifyCmd.Flags().String("download-dir", "pdfs", "directory holding downloaded PDFs")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	storePath := configString(cmd, "store", "harvest.json")
	downloadDir := configString(cmd, "download-dir", "harvest.download_dir")

	records, err := store.New("", storePath, logger).ReadAll()
	if err != nil {
		return err
	}

	sum, err := verify.Run(downloadDir, records, os.Stdout)
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d asset problem(s) found", sum.Missing+sum.Unreadable)
	}
	return nil
}
