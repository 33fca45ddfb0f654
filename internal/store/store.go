// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists harvested papers to the tabular and structured
// stores. Both stores are append-only from the pipeline's point of view;
// the structured store is rewritten atomically on every append so a
// crash never truncates it.
package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// ErrCorrupt reports that the structured store exists but could not be
// parsed. Callers warn and treat the store as empty.
var ErrCorrupt = errors.New("structured store is not valid JSON")

// csvHeader is the tabular store column order.
var csvHeader = []string{"year", "title", "authors", "abstract", "pdf_url"}

// Store reads and appends the dual-format paper stores.
type Store struct {
	csvPath  string
	jsonPath string
	logger   *zap.Logger
}

// New builds a Store over the given tabular and structured store paths.
// csvPath may be empty when the store is only read; reads touch only the
// structured store.
func New(csvPath, jsonPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{csvPath: csvPath, jsonPath: jsonPath, logger: logger}
}

// JSONPath returns the structured store path.
func (s *Store) JSONPath() string { return s.jsonPath }

// KnownTitles returns the set of titles already present in the
// structured store. A missing store yields an empty set and nil error.
// An unparseable store yields an empty set and an error matching
// ErrCorrupt so the caller can warn and continue.
func (s *Store) KnownTitles() (map[string]struct{}, error) {
	titles := make(map[string]struct{})
	records, err := s.readJSON()
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return titles, err
		}
		return nil, err
	}
	for _, r := range records {
		titles[r.Title] = struct{}{}
	}
	return titles, nil
}

// ReadAll returns every record in the structured store, in stored order.
func (s *Store) ReadAll() ([]types.PaperRecord, error) {
	return s.readJSON()
}

// Append writes rec to both stores. The CSV row is appended with the
// header written only when the file did not previously exist; the JSON
// array is read, extended, and rewritten via temp file + rename. Errors
// here are fatal to the run: a store that cannot be written invalidates
// everything downstream.
func (s *Store) Append(rec types.PaperRecord) error {
	for _, p := range []string{s.csvPath, s.jsonPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating store directory: %w", err)
			}
		}
	}
	if err := s.appendCSV(rec); err != nil {
		return fmt.Errorf("appending tabular store: %w", err)
	}
	if err := s.appendJSON(rec); err != nil {
		return fmt.Errorf("appending structured store: %w", err)
	}
	return nil
}

func (s *Store) appendCSV(rec types.PaperRecord) error {
	_, statErr := os.Stat(s.csvPath)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return err
		}
	}
	row := []string{strconv.Itoa(rec.Year), rec.Title, rec.Authors, rec.Abstract, rec.PDFURL}
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *Store) appendJSON(rec types.PaperRecord) error {
	records, err := s.readJSON()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		// Unreadable store degrades to a fresh array rather than
		// blocking the run; the walker already warned about it.
		s.logger.Warn("structured store unreadable, starting fresh",
			zap.String("path", s.jsonPath),
			zap.Error(err))
		records = nil
	}
	records = append(records, rec)
	return s.writeJSON(records)
}

// writeJSON rewrites the structured store atomically: marshal to a temp
// file in the same directory, then rename over the old store.
func (s *Store) writeJSON(records []types.PaperRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.jsonPath), ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, s.jsonPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (s *Store) readJSON() ([]types.PaperRecord, error) {
	data, err := os.ReadFile(s.jsonPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading structured store: %w", err)
	}

	var records []types.PaperRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}
