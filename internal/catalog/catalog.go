// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog maintains a full-text search index over the harvested
// papers. The index is derived from the structured store, which remains
// the system of record; the catalog can always be rebuilt from it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

const dbFile = "catalog.db"

// Catalog manages the SQLite catalog database.
type Catalog struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates the catalog database at dir/catalog.db and
// creates the schema when missing.
func Open(cfg types.CatalogConfig) (*Catalog, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	c := &Catalog{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			title TEXT PRIMARY KEY,
			year INTEGER,
			authors TEXT,
			abstract TEXT,
			pdf_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year)`,
		`CREATE TABLE IF NOT EXISTS sync_status (
			source_path TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := c.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO papers_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := c.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// SyncSummary holds counts from a catalog sync run.
type SyncSummary struct {
	Indexed int
	Updated int
	Skipped int
}

// Total returns the number of papers processed.
func (s SyncSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped
}

// Sync upserts every record from the structured store into the catalog.
// When the store file's modification time matches the last sync the
// whole pass is skipped.
func (c *Catalog) Sync(ctx context.Context, st *store.Store, w io.Writer) (SyncSummary, error) {
	sourcePath := st.JSONPath()

	info, err := os.Stat(sourcePath)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("stat structured store: %w", err)
	}
	modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

	var summary SyncSummary

	var storedModTime string
	err = c.db.QueryRowContext(ctx,
		`SELECT file_mod_time FROM sync_status WHERE source_path = ?`, sourcePath,
	).Scan(&storedModTime)
	if err == nil && storedModTime == modTime {
		if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM papers`).Scan(&summary.Skipped); err != nil {
			return summary, fmt.Errorf("counting papers: %w", err)
		}
		fmt.Fprintf(w, "catalog up to date (%s unchanged)\n", sourcePath)
		return summary, nil
	}

	records, err := st.ReadAll()
	if err != nil {
		return summary, fmt.Errorf("reading structured store: %w", err)
	}

	existing := make(map[string]bool)
	rows, err := c.db.QueryContext(ctx, `SELECT title FROM papers`)
	if err != nil {
		return summary, fmt.Errorf("listing indexed titles: %w", err)
	}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			rows.Close()
			return summary, fmt.Errorf("scanning title: %w", err)
		}
		existing[title] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return summary, err
	}
	rows.Close()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (title, year, authors, abstract, pdf_url)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET
			year=excluded.year, authors=excluded.authors,
			abstract=excluded.abstract, pdf_url=excluded.pdf_url`)
	if err != nil {
		return summary, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Title, rec.Year, rec.Authors, rec.Abstract, rec.PDFURL,
		); err != nil {
			return summary, fmt.Errorf("upserting %q: %w", rec.Title, err)
		}
		if existing[rec.Title] {
			summary.Updated++
		} else {
			summary.Indexed++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_status (source_path, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(source_path) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		sourcePath, modTime,
	); err != nil {
		return summary, fmt.Errorf("updating sync status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing sync: %w", err)
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped)
	return summary, nil
}
