// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves index pages, abstract pages, and PDF assets
// with bounded retries and a fixed delay between attempts.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-harvester/pkg/types"
)

// Defaults applied when the corresponding HTTPConfig field is zero.
const (
	DefaultTimeout    = 300 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Second
)

// downloadChunkSize bounds the buffer used when streaming PDF bodies to
// disk, so large assets never load fully into memory.
const downloadChunkSize = 1 << 20

// Error reports a request that kept failing after every attempt.
// Callers treat it as a skip signal, never as a fatal condition.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client fetches pages and assets over HTTP. All methods are safe for
// sequential reuse; the pipeline never calls them concurrently.
type Client struct {
	http   *http.Client
	cfg    types.HTTPConfig
	logger *zap.Logger
}

// NewClient builds a Client from cfg, substituting defaults for zero
// Timeout, Retries, and RetryDelay. The per-request timeout covers the
// whole body read, so a stalled transfer counts as one failed attempt.
func NewClient(cfg types.HTTPConfig, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Text fetches url and returns the response body as a string. Transport
// errors and non-200 statuses are retried up to the configured attempt
// count with a fixed pause between attempts; after exhaustion it returns
// a *Error wrapping the last failure.
func (c *Client) Text(ctx context.Context, url string) (string, error) {
	var body []byte
	err := c.withRetry(ctx, url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Binary downloads url to destPath. If destPath already exists the
// download is skipped. The body is streamed in bounded chunks to a
// temporary file in the destination directory and renamed into place on
// success, so a failed final attempt leaves nothing at destPath.
func (c *Client) Binary(ctx context.Context, url, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		c.logger.Debug("asset already present, skipping download",
			zap.String("path", destPath))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}
	return c.withRetry(ctx, url, func() error {
		return c.downloadOnce(ctx, url, destPath)
	})
}

// downloadOnce performs a single download attempt via temp file + rename.
func (c *Client) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.CopyBuffer(tmpFile, resp.Body, make([]byte, downloadChunkSize))
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// withRetry runs op up to the configured attempt count, pausing the
// fixed delay between attempts. Context cancellation during a pause or
// between attempts stops the schedule immediately.
func (c *Client) withRetry(ctx context.Context, url string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		c.logger.Warn("request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Retries),
			zap.Error(lastErr))
		if attempt < c.cfg.Retries {
			if err := Pause(ctx, c.cfg.RetryDelay); err != nil {
				return err
			}
		}
	}
	c.logger.Warn("giving up",
		zap.String("url", url),
		zap.Int("attempts", c.cfg.Retries))
	return &Error{URL: url, Attempts: c.cfg.Retries, Err: lastErr}
}

// Pause sleeps for d unless the context is cancelled first, in which
// case it returns the context's error.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
