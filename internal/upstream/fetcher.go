// Package upstream downloads crates from an upstream cargo registry.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/git-pkgs/repackage/internal/metrics"
)

// ecosystem labels the upstream metrics.
const ecosystem = "cargo"

var (
	ErrNotFound     = errors.New("crate not found upstream")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream registry unavailable")
)

// Artifact is a successful upstream response.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// Fetcher downloads crates, retrying rate-limited and failed attempts with
// exponential backoff.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the delay before the first retry. Each further retry
// doubles it.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithMaxDelay caps the wait between attempts, including waits requested by
// a Retry-After header.
func WithMaxDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.maxDelay = d
	}
}

// WithLogger sets the logger retries are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a new Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		userAgent:  "git-pkgs-repackage",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   30 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// retryError marks an attempt that may succeed if repeated.
type retryError struct {
	err        error
	retryAfter time.Duration // zero when the server did not ask for a delay
}

func (e *retryError) Error() string { return e.err.Error() }
func (e *retryError) Unwrap() error { return e.err }

// Fetch downloads url. Every attempt is timed and failures are counted by
// type in the upstream metrics. 404 and unexpected statuses fail at once;
// 429 and 5xx are retried up to the configured limit.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.delay(attempt, lastErr)
			f.logger.Warn("retrying upstream fetch",
				"url", url,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		artifact, err := f.doFetch(ctx, url)
		metrics.RecordUpstreamFetch(ecosystem, time.Since(start))
		if err == nil {
			return artifact, nil
		}
		metrics.RecordUpstreamError(ecosystem, errorType(err))
		lastErr = err

		var re *retryError
		if !errors.As(err, &re) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", f.maxRetries+1, lastErr)
}

// delay returns the wait before the given attempt: the server's Retry-After
// when it sent one, exponential backoff otherwise, never more than maxDelay.
func (f *Fetcher) delay(attempt int, lastErr error) time.Duration {
	d := f.baseDelay << (attempt - 1)
	var re *retryError
	if errors.As(lastErr, &re) && re.retryAfter > 0 {
		d = re.retryAfter
	}
	if f.maxDelay > 0 && (d > f.maxDelay || d < 0) {
		d = f.maxDelay
	}
	return d
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/gzip, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching crate: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		size := int64(-1)
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}

		return &Artifact{
			Body:        resp.Body,
			Size:        size,
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &retryError{err: ErrRateLimited, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, &retryError{
			err:        fmt.Errorf("%w: status %d", ErrUpstreamDown, resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// parseRetryAfter reads a Retry-After value given either in seconds or as an
// HTTP date. It returns zero for a missing or unparseable value.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// errorType labels err for the upstream error metric.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamDown):
		return "upstream_down"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "fetch_failed"
	}
}
