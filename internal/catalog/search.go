// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// QueryOptions holds parameters for catalog queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over title and abstract.
	// Empty means list everything.
	Query string

	// Year filters to one proceedings year. Zero means all years.
	Year int

	// MaxResults limits result count. Zero uses the catalog default.
	MaxResults int
}

// Search queries the catalog. Full-text queries are ranked by
// relevance; listing queries are ordered by year then title.
func (c *Catalog) Search(ctx context.Context, opts QueryOptions) ([]types.PaperRecord, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT p.year, p.title, p.authors, p.abstract, p.pdf_url
			FROM papers_fts
			JOIN papers p ON p.rowid = papers_fts.rowid
			WHERE papers_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT year, title, authors, abstract, pdf_url
			FROM papers p
			WHERE 1=1`)
	}

	if opts.Year != 0 {
		qb.WriteString(` AND p.year = ?`)
		args = append(args, opts.Year)
	}

	if useFTS {
		qb.WriteString(` ORDER BY papers_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.year, p.title`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := c.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []types.PaperRecord
	for rows.Next() {
		var rec types.PaperRecord
		if err := rows.Scan(&rec.Year, &rec.Title, &rec.Authors, &rec.Abstract, &rec.PDFURL); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}
