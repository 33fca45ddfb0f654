// Package harvest walks yearly proceedings indexes, extracts paper
// metadata from abstract pages, downloads PDFs, and appends new records
// to the stores.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/internal/fetch"
	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Defaults applied when the corresponding HarvestConfig field is zero.
const (
	DefaultBaseURL   = "https://papers.nips.cc"
	DefaultYearDelay = 5 * time.Second
)

// indexPathFormat is the yearly index path under the site root.
const indexPathFormat = "%s/paper_files/paper/%d"

// Summary holds the outcome of a harvest run.
type Summary struct {
	Stored  int
	Skipped int
	Failed  int
}

// Total returns the total number of items processed.
func (s Summary) Total() int { return s.Stored + s.Skipped + s.Failed }

// HasFailures reports whether any item failed.
func (s Summary) HasFailures() bool { return s.Failed > 0 }

// outcome is the terminal state of one document reference.
type outcome int

const (
	outcomeStored outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Pipeline drives the harvest: one year at a time, one document at a
// time, never concurrently.
type Pipeline struct {
	fetcher *fetch.Client
	store   *store.Store
	cfg     types.HarvestConfig
	logger  *zap.Logger
}

// New builds a Pipeline. An empty BaseURL falls back to DefaultBaseURL.
func New(fetcher *fetch.Client, st *store.Store, cfg types.HarvestConfig, logger *zap.Logger) *Pipeline {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, store: st, cfg: cfg, logger: logger}
}

// Run walks the given years in order, printing per-item status to w and
// returning a summary. Network and extraction failures are counted and
// skipped; only context cancellation and store write errors abort the
// run. A pause separates consecutive years.
func (p *Pipeline) Run(ctx context.Context, years []int, w io.Writer) (Summary, error) {
	var sum Summary
	for i, year := range years {
		if i > 0 {
			if err := fetch.Pause(ctx, p.cfg.YearDelay); err != nil {
				return sum, err
			}
		}
		if err := p.harvestYear(ctx, year, &sum, w); err != nil {
			return sum, err
		}
	}
	fmt.Fprintf(w, "\nHarvest summary: %d stored, %d skipped, %d failed (total: %d)\n",
		sum.Stored, sum.Skipped, sum.Failed, sum.Total())
	return sum, nil
}

// harvestYear processes one yearly index. An unreachable or unparseable
// index fails soft: the year contributes nothing and the run moves on.
func (p *Pipeline) harvestYear(ctx context.Context, year int, sum *Summary, w io.Writer) error {
	indexURL := p.indexURL(year)
	p.logger.Info("walking index", zap.Int("year", year), zap.String("url", indexURL))

	html, err := p.fetcher.Text(ctx, indexURL)
	if err != nil {
		if isContextErr(err) {
			return err
		}
		p.logger.Warn("index fetch failed", zap.Int("year", year), zap.Error(err))
		fmt.Fprintf(w, "year %d: index fetch failed (%v)\n", year, err)
		sum.Failed++
		return nil
	}

	refs, err := ParseIndex(html, p.cfg.BaseURL, year)
	if err != nil {
		p.logger.Warn("index parse failed", zap.Int("year", year), zap.Error(err))
		fmt.Fprintf(w, "year %d: index parse failed (%v)\n", year, err)
		sum.Failed++
		return nil
	}

	known, err := p.store.KnownTitles()
	if err != nil {
		if !errors.Is(err, store.ErrCorrupt) {
			return err
		}
		p.logger.Warn("structured store unreadable, assuming no stored titles",
			zap.Error(err))
	}

	p.logger.Info("index walked",
		zap.Int("year", year),
		zap.Int("documents", len(refs)),
		zap.Int("known_titles", len(known)))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := p.processDocument(ctx, ref, known, w)
		if err != nil {
			return err
		}
		switch out {
		case outcomeStored:
			sum.Stored++
		case outcomeSkipped:
			sum.Skipped++
		case outcomeFailed:
			sum.Failed++
		}
	}
	return nil
}

// processDocument takes one reference from discovery to a terminal
// state. The returned error is fatal (store write or cancellation);
// everything else resolves to an outcome.
func (p *Pipeline) processDocument(ctx context.Context, ref types.DocumentRef, known map[string]struct{}, w io.Writer) (outcome, error) {
	if _, ok := known[ref.Title]; ok {
		p.logger.Debug("already stored", zap.String("title", ref.Title))
		fmt.Fprintf(w, "skipped: %s (already stored)\n", ref.Title)
		return outcomeSkipped, nil
	}

	html, err := p.fetcher.Text(ctx, ref.SourceURL)
	if err != nil {
		if isContextErr(err) {
			return outcomeFailed, err
		}
		fmt.Fprintf(w, "failed:  %s (%v)\n", ref.SourceURL, err)
		return outcomeFailed, nil
	}

	doc, err := ParseDocument(html)
	if err != nil {
		p.logger.Warn("document skipped",
			zap.String("url", ref.SourceURL),
			zap.Error(err))
		fmt.Fprintf(w, "skipped: %s (%v)\n", ref.SourceURL, err)
		return outcomeSkipped, nil
	}

	// The extracted title is authoritative. Recheck it so two
	// references resolving to the same cleaned title store once.
	if _, ok := known[doc.Title]; ok {
		fmt.Fprintf(w, "skipped: %s (already stored)\n", doc.Title)
		return outcomeSkipped, nil
	}

	rec := types.PaperRecord{
		Year:     ref.Year,
		Title:    doc.Title,
		Authors:  doc.Authors,
		Abstract: doc.Abstract,
		PDFURL:   types.PDFUnavailable,
	}

	if doc.PDFHref != "" {
		rec.PDFURL = joinURL(p.cfg.BaseURL, doc.PDFHref)
		dest := filepath.Join(p.cfg.DownloadDir, doc.Title+".pdf")
		if err := p.fetcher.Binary(ctx, rec.PDFURL, dest); err != nil {
			if isContextErr(err) {
				return outcomeFailed, err
			}
			// The record keeps the remote URL even when the local
			// download gave up.
			p.logger.Warn("download failed",
				zap.String("title", doc.Title),
				zap.String("url", rec.PDFURL),
				zap.Error(err))
		}
	}

	if err := p.store.Append(rec); err != nil {
		return outcomeFailed, err
	}
	known[doc.Title] = struct{}{}
	p.logger.Info("stored", zap.Int("year", ref.Year), zap.String("title", doc.Title))
	fmt.Fprintf(w, "stored:  %s (%d)\n", doc.Title, ref.Year)
	return outcomeStored, nil
}

func (p *Pipeline) indexURL(year int) string {
	return fmt.Sprintf(indexPathFormat, strings.TrimSuffix(p.cfg.BaseURL, "/"), year)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
