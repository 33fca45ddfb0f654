package store

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(filepath.Join(dir, "dataset.csv"), filepath.Join(dir, "metadata.json"), nil)
	return s, dir
}

func sampleRecord(title string) types.PaperRecord {
	return types.PaperRecord{
		Year:     2022,
		Title:    title,
		Authors:  "Smith, J., Doe, A.",
		Abstract: "We study attention mechanisms.",
		PDFURL:   "https://papers.example.org/" + title + ".pdf",
	}
}

func TestKnownTitles_MissingStore(t *testing.T) {
	s, _ := testStore(t)

	titles, err := s.KnownTitles()
	if err != nil {
		t.Fatalf("KnownTitles: %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("expected empty set, got %d titles", len(titles))
	}
}

func TestKnownTitles_CorruptStore(t *testing.T) {
	s, dir := testStore(t)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	titles, err := s.KnownTitles()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if len(titles) != 0 {
		t.Errorf("corrupt store must yield empty set, got %d titles", len(titles))
	}
}

func TestKnownTitles_ReflectsAppendedRecords(t *testing.T) {
	s, _ := testStore(t)
	for _, title := range []string{"First Paper", "Second Paper"} {
		if err := s.Append(sampleRecord(title)); err != nil {
			t.Fatalf("Append(%s): %v", title, err)
		}
	}

	titles, err := s.KnownTitles()
	if err != nil {
		t.Fatalf("KnownTitles: %v", err)
	}
	for _, want := range []string{"First Paper", "Second Paper"} {
		if _, ok := titles[want]; !ok {
			t.Errorf("missing title %q", want)
		}
	}
}

func TestAppend_WritesCSVHeaderOnce(t *testing.T) {
	s, dir := testStore(t)
	for _, title := range []string{"First Paper", "Second Paper"} {
		if err := s.Append(sampleRecord(title)); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "dataset.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d rows", len(rows))
	}
	if got := strings.Join(rows[0], ","); got != "year,title,authors,abstract,pdf_url" {
		t.Errorf("unexpected header: %s", got)
	}
	if rows[1][1] != "First Paper" || rows[2][1] != "Second Paper" {
		t.Errorf("rows out of order: %v", rows[1:])
	}
}

func TestAppend_QuotesCommasInFields(t *testing.T) {
	s, dir := testStore(t)
	rec := sampleRecord("Paper With Commas")
	rec.Abstract = "First clause, second clause, third clause."
	if err := s.Append(rec); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "dataset.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[1][3] != rec.Abstract {
		t.Errorf("abstract mangled: %q", rows[1][3])
	}
}

func TestAppend_PreservesExistingRecords(t *testing.T) {
	s, _ := testStore(t)
	if err := s.Append(sampleRecord("First Paper")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(sampleRecord("Second Paper")); err != nil {
		t.Fatal(err)
	}

	records, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "First Paper" || records[1].Title != "Second Paper" {
		t.Errorf("records out of order: %v", records)
	}
}

func TestAppend_CorruptStoreStartsFresh(t *testing.T) {
	s, dir := testStore(t)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("[{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Append(sampleRecord("Recovered Paper")); err != nil {
		t.Fatalf("Append over corrupt store: %v", err)
	}

	records, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll after recovery: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Recovered Paper" {
		t.Errorf("unexpected records after recovery: %v", records)
	}
}

func TestAppend_LeavesNoTempFiles(t *testing.T) {
	s, dir := testStore(t)
	if err := s.Append(sampleRecord("Only Paper")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".store-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestAppend_JSONUsesFourSpaceIndent(t *testing.T) {
	s, dir := testStore(t)
	if err := s.Append(sampleRecord("Only Paper")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n    \"year\"") {
		t.Errorf("structured store not indented with four spaces:\n%s", data)
	}
}

func TestReadAll_MissingStore(t *testing.T) {
	s, _ := testStore(t)
	records, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
