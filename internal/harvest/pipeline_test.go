// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paper-harvester/internal/fetch"
	"github.com/pdiddy/paper-harvester/internal/store"
	"github.com/pdiddy/paper-harvester/pkg/types"
)

// --- test helpers ---

func indexPage(links ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Proceedings</title></head><body><ul class="paper-list">`)
	for _, l := range links {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, l[0], l[1])
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func abstractPage(title, authors, abstract, pdfHref string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s</title></head><body>`, title)
	if pdfHref != "" {
		fmt.Fprintf(&b, `<a class="btn" href="%s">Paper</a>`, pdfHref)
	}
	if authors != "" {
		fmt.Fprintf(&b, `<h4>Authors</h4><p>%s</p>`, authors)
	}
	if abstract != "" {
		fmt.Fprintf(&b, `<h4>Abstract</h4><p>%s</p>`, abstract)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// newTestPipeline wires a pipeline against ts with tiny delays and
// store paths under a fresh temp dir.
func newTestPipeline(t *testing.T, ts *httptest.Server) (*Pipeline, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := types.HarvestConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    5 * time.Second,
			UserAgent:  "paper-harvester-test/0",
			Retries:    2,
			RetryDelay: time.Millisecond,
		},
		BaseURL:     ts.URL,
		DownloadDir: filepath.Join(dir, "pdfs"),
		CSVPath:     filepath.Join(dir, "dataset.csv"),
		JSONPath:    filepath.Join(dir, "metadata.json"),
		YearDelay:   0,
	}
	st := store.New(cfg.CSVPath, cfg.JSONPath, nil)
	p := New(fetch.NewClient(cfg.HTTPConfig, nil), st, cfg, nil)
	return p, st, dir
}

func TestRun_StoresNewPapers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2022", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage(
			[2]string{"/paper/a-Abstract.html", "Paper A"},
			[2]string{"/paper/b-Abstract.html", "Paper B"},
		))
	})
	mux.HandleFunc("/paper/a-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Paper A", "Ada Lovelace", "Abstract of A.", "/assets/a-Paper.pdf"))
	})
	mux.HandleFunc("/paper/b-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Paper B", "", "Abstract of B.", ""))
	})
	mux.HandleFunc("/assets/a-Paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, dir := newTestPipeline(t, ts)
	var out bytes.Buffer
	sum, err := p.Run(context.Background(), []int{2022}, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Stored != 2 || sum.Skipped != 0 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}

	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "Paper A" || records[0].Authors != "Ada Lovelace" {
		t.Errorf("first record: %+v", records[0])
	}
	if records[0].PDFURL != ts.URL+"/assets/a-Paper.pdf" {
		t.Errorf("first record PDF URL: %q", records[0].PDFURL)
	}
	if records[1].Authors != "Authors not available" {
		t.Errorf("second record authors: %q", records[1].Authors)
	}
	if records[1].PDFURL != "Unavailable" {
		t.Errorf("second record PDF URL: %q", records[1].PDFURL)
	}

	if _, err := os.Stat(filepath.Join(dir, "pdfs", "Paper A.pdf")); err != nil {
		t.Errorf("downloaded asset missing: %v", err)
	}
	if !strings.Contains(out.String(), "Harvest summary: 2 stored") {
		t.Errorf("summary line missing from output:\n%s", out.String())
	}
}

func TestRun_RerunSkipsStoredPapers(t *testing.T) {
	var pageFetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2021", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/a-Abstract.html", "Paper A"}))
	})
	mux.HandleFunc("/paper/a-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&pageFetches, 1)
		fmt.Fprint(w, abstractPage("Paper A", "Ada Lovelace", "Abstract.", ""))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, _ := newTestPipeline(t, ts)
	if _, err := p.Run(context.Background(), []int{2021}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	sum, err := p.Run(context.Background(), []int{2021}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	if sum.Stored != 0 || sum.Skipped != 1 {
		t.Errorf("second run summary = %+v", sum)
	}
	// The known reference is filtered before its page is fetched.
	if n := atomic.LoadInt32(&pageFetches); n != 1 {
		t.Errorf("abstract page fetched %d times, want 1", n)
	}
	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after rerun, got %d", len(records))
	}
}

func TestRun_DeduplicatesWithinRun(t *testing.T) {
	// Two distinct references whose pages carry the same title: only
	// the first may be stored.
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage(
			[2]string{"/paper/v1-Abstract.html", "Shared Title v1"},
			[2]string{"/paper/v2-Abstract.html", "Shared Title v2"},
		))
	})
	for _, path := range []string{"/paper/v1-Abstract.html", "/paper/v2-Abstract.html"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, abstractPage("Shared Title", "Someone", "Same paper.", ""))
		})
	}
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, _ := newTestPipeline(t, ts)
	sum, err := p.Run(context.Background(), []int{2020}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Stored != 1 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "Shared Title" {
		t.Errorf("records = %+v", records)
	}
}

func TestRun_IndexFailureFailsSoft(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2019", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/a-Abstract.html", "Paper A"}))
	})
	mux.HandleFunc("/paper/a-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Paper A", "Someone", "Fine.", ""))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, _, _ := newTestPipeline(t, ts)
	var out bytes.Buffer
	sum, err := p.Run(context.Background(), []int{2019, 2020}, &out)
	if err != nil {
		t.Fatalf("Run must not fail on an unreachable index: %v", err)
	}
	if sum.Failed != 1 || sum.Stored != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.Contains(out.String(), "year 2019: index fetch failed") {
		t.Errorf("missing index failure line:\n%s", out.String())
	}
}

func TestRun_DocumentFetchFailureCountsFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage(
			[2]string{"/paper/bad-Abstract.html", "Bad Paper"},
			[2]string{"/paper/good-Abstract.html", "Good Paper"},
		))
	})
	mux.HandleFunc("/paper/bad-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/paper/good-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Good Paper", "Someone", "Fine.", ""))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, _ := newTestPipeline(t, ts)
	sum, err := p.Run(context.Background(), []int{2020}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || sum.Stored != 1 {
		t.Errorf("summary = %+v", sum)
	}
	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "Good Paper" {
		t.Errorf("records = %+v", records)
	}
}

func TestRun_UntitledDocumentSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/untitled-Abstract.html", "Untitled"}))
	})
	mux.HandleFunc("/paper/untitled-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>no title element</p></body></html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, _ := newTestPipeline(t, ts)
	sum, err := p.Run(context.Background(), []int{2020}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Skipped != 1 || sum.Stored != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v", sum)
	}
	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("untitled document must not be stored: %+v", records)
	}
}

func TestRun_DownloadFailureStillStoresRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/a-Abstract.html", "Paper A"}))
	})
	mux.HandleFunc("/paper/a-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Paper A", "Someone", "Fine.", "/assets/a-Paper.pdf"))
	})
	mux.HandleFunc("/assets/a-Paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, dir := newTestPipeline(t, ts)
	sum, err := p.Run(context.Background(), []int{2020}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Stored != 1 {
		t.Errorf("summary = %+v", sum)
	}

	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// The remote URL survives even though the local download gave up.
	if records[0].PDFURL != ts.URL+"/assets/a-Paper.pdf" {
		t.Errorf("PDF URL: %q", records[0].PDFURL)
	}
	if _, err := os.Stat(filepath.Join(dir, "pdfs", "Paper A.pdf")); !os.IsNotExist(err) {
		t.Errorf("no asset file may exist after a failed download")
	}
}

func TestRun_CorruptStoreContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/a-Abstract.html", "Paper A"}))
	})
	mux.HandleFunc("/paper/a-Abstract.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, abstractPage("Paper A", "Someone", "Fine.", ""))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p, st, dir := newTestPipeline(t, ts)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum, err := p.Run(context.Background(), []int{2020}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("corrupt store must not abort the run: %v", err)
	}
	if sum.Stored != 1 {
		t.Errorf("summary = %+v", sum)
	}
	records, err := st.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records = %+v", records)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper_files/paper/2020", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexPage([2]string{"/paper/a-Abstract.html", "Paper A"}))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _, _ := newTestPipeline(t, ts)
	_, err := p.Run(ctx, []int{2020}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestIndexURL(t *testing.T) {
	p := New(nil, nil, types.HarvestConfig{BaseURL: "https://papers.example.org/"}, nil)
	if got := p.indexURL(2023); got != "https://papers.example.org/paper_files/paper/2023" {
		t.Errorf("indexURL: %q", got)
	}
}
