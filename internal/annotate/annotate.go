// Package annotate assigns a topical category to each stored paper via
// a Generative AI API and writes the annotated tabular export. The
// harvest stores are inputs only; they are never rewritten here.
package annotate

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// DefaultCategories is the closed label set papers are classified into
// when no custom set is configured.
var DefaultCategories = []string{
	"Deep Learning",
	"Computer Vision",
	"Reinforcement Learning",
	"Natural Language Processing",
	"Optimization",
}

// annotatedHeader is the annotated export column order: the store
// columns plus the assigned category.
var annotatedHeader = []string{"year", "title", "authors", "abstract", "pdf_url", "category"}

// Backend abstracts the Generative AI API so tests can supply a mock.
// Complete sends one prompt and returns the model's textual answer.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewBackend selects a backend implementation from cfg. An empty
// backend name selects OpenAI; an empty model selects the backend's
// default model.
func NewBackend(cfg types.AIConfig) (Backend, error) {
	switch cfg.Backend {
	case types.BackendOpenAI, "":
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: model}, nil
	case types.BackendGemini:
		model := cfg.Model
		if model == "" {
			model = DefaultGeminiModel
		}
		return &GeminiBackend{APIKey: cfg.APIKey, Model: model}, nil
	default:
		return nil, fmt.Errorf("unknown annotation backend %q", cfg.Backend)
	}
}

// Classifier assigns one category per paper. It never returns an
// error: every failure path resolves to CategoryUncategorized so the
// pass always completes.
type Classifier struct {
	backend    Backend
	categories []string
	maxRetries int
	logger     *zap.Logger
}

// NewClassifier builds a Classifier over backend with the label set
// from cfg (DefaultCategories when empty).
func NewClassifier(backend Backend, cfg types.AnnotationConfig, logger *zap.Logger) *Classifier {
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		backend:    backend,
		categories: categories,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Classify returns the category for one paper. The model's answer is
// trimmed and matched case-insensitively against the label set; a
// failed call or an off-list answer yields CategoryUncategorized.
func (c *Classifier) Classify(ctx context.Context, title, abstract string) string {
	prompt, err := renderPrompt(c.categories, title, abstract)
	if err != nil {
		c.logger.Warn("prompt rendering failed",
			zap.String("title", title),
			zap.Error(err))
		return types.CategoryUncategorized
	}

	answer, err := callWithRetry(ctx, c.backend, prompt, c.maxRetries)
	if err != nil {
		c.logger.Warn("classification failed",
			zap.String("title", title),
			zap.String("backend", c.backend.Name()),
			zap.Error(err))
		return types.CategoryUncategorized
	}

	answer = strings.TrimSpace(answer)
	for _, cat := range c.categories {
		if strings.EqualFold(answer, cat) {
			return cat
		}
	}
	c.logger.Warn("answer outside label set",
		zap.String("title", title),
		zap.String("answer", answer))
	return types.CategoryUncategorized
}

// Summary holds counts from an annotation run.
type Summary struct {
	Annotated     int
	Uncategorized int
}

// Total returns the number of papers processed.
func (s Summary) Total() int {
	return s.Annotated + s.Uncategorized
}

// Run classifies records in stored order and writes the annotated CSV
// to outputPath, printing one line per paper to w. Only context
// cancellation and local write errors abort the pass.
func Run(ctx context.Context, classifier *Classifier, records []types.PaperRecord, outputPath string, w io.Writer) (Summary, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return Summary{}, fmt.Errorf("creating annotated export: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(annotatedHeader); err != nil {
		f.Close()
		return Summary{}, fmt.Errorf("writing header: %w", err)
	}

	var sum Summary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			f.Close()
			return sum, err
		}

		category := classifier.Classify(ctx, rec.Title, rec.Abstract)
		if category == types.CategoryUncategorized {
			sum.Uncategorized++
		} else {
			sum.Annotated++
		}

		row := []string{strconv.Itoa(rec.Year), rec.Title, rec.Authors, rec.Abstract, rec.PDFURL, category}
		if err := cw.Write(row); err != nil {
			f.Close()
			return sum, fmt.Errorf("writing row for %q: %w", rec.Title, err)
		}
		fmt.Fprintf(w, "annotated %s: %s\n", rec.Title, category)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return sum, fmt.Errorf("flushing annotated export: %w", err)
	}
	if err := f.Close(); err != nil {
		return sum, fmt.Errorf("closing annotated export: %w", err)
	}

	fmt.Fprintf(w, "\nAnnotation summary: %d annotated, %d uncategorized (total: %d)\n",
		sum.Annotated, sum.Uncategorized, sum.Total())
	return sum, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff between
// attempts.
func callWithRetry(ctx context.Context, backend Backend, prompt string, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		answer, err := backend.Complete(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
