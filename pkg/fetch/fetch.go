// Package fetch downloads weekly archive zips and their index pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://theweekinchess.com"
	DefaultUserAgent = "curl/8.4.0"
	// DefaultMaxBytes bounds a single download.
	DefaultMaxBytes = 64 * 1024 * 1024
)

var ErrTooLarge = errors.New("fetch: response exceeds size limit")

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Client retrieves archive content over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	MaxBytes   int64
	// Retries is the number of extra attempts after a transport error or a
	// 5xx response.
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
}

// NewClient returns a Client with defaults for any zero field.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  DefaultUserAgent,
		MaxBytes:   DefaultMaxBytes,
		Backoff:    time.Second,
		Logger:     logger,
	}
}

func (c *Client) IndexURL(archive int) string {
	return fmt.Sprintf("%s/html/twic%d.html", c.BaseURL, archive)
}

func (c *Client) ArchiveURL(archive int) string {
	return fmt.Sprintf("%s/zips/twic%dg.zip", c.BaseURL, archive)
}

// FetchIndex returns the raw index page of archive.
func (c *Client) FetchIndex(ctx context.Context, archive int) ([]byte, error) {
	return c.get(ctx, c.IndexURL(archive))
}

// FetchArchive returns the raw zip of archive.
func (c *Client) FetchArchive(ctx context.Context, archive int) ([]byte, error) {
	return c.get(ctx, c.ArchiveURL(archive))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			c.Logger.Warn("retrying download",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Backoff * time.Duration(attempt)):
			}
		}

		body, err := c.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%s: content-length %d: %w", url, resp.ContentLength, ErrTooLarge)
	}
	// Read one byte past the limit so an exact-size body is accepted.
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s: %w", url, ErrTooLarge)
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return true
}
