// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify audits the download directory against the harvested
// records without modifying either.
package verify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Summary reports the result of checking every record's PDF asset.
type Summary struct {
	Present    int
	Missing    int
	Unreadable int
	NoAsset    int
}

// Total returns the number of records checked.
func (s Summary) Total() int {
	return s.Present + s.Missing + s.Unreadable + s.NoAsset
}

// HasFailures reports whether any asset was missing or unreadable.
func (s Summary) HasFailures() bool {
	return s.Missing > 0 || s.Unreadable > 0
}

// Run checks that each record with a PDF URL has a readable PDF under
// downloadDir. Records whose PDF was never published are counted
// separately. Progress lines for problem records go to w.
func Run(downloadDir string, records []types.PaperRecord, w io.Writer) (Summary, error) {
	var sum Summary

	if _, err := os.Stat(downloadDir); err != nil {
		return sum, fmt.Errorf("download directory: %w", err)
	}

	for _, rec := range records {
		if rec.PDFURL == types.PDFUnavailable {
			sum.NoAsset++
			fmt.Fprintf(w, "no asset:   %s\n", rec.Title)
			continue
		}

		path := filepath.Join(downloadDir, rec.Title+".pdf")
		if _, err := os.Stat(path); err != nil {
			sum.Missing++
			fmt.Fprintf(w, "missing:    %s\n", rec.Title)
			continue
		}

		if err := checkPDF(path); err != nil {
			sum.Unreadable++
			fmt.Fprintf(w, "unreadable: %s (%v)\n", rec.Title, err)
			continue
		}
		sum.Present++
	}

	fmt.Fprintf(w, "\nVerify summary: %d present, %d missing, %d unreadable, %d without assets (total: %d)\n",
		sum.Present, sum.Missing, sum.Unreadable, sum.NoAsset, sum.Total())
	return sum, nil
}

// checkPDF opens the file as a PDF and confirms it has at least one page.
func checkPDF(path string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if r.NumPage() < 1 {
		return errors.New("document has no pages")
	}
	return nil
}
