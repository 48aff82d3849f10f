package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// Response is the raw result of a successful fetch
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Error describes a fetch that could not produce a success response.
// StatusCode is zero for transport failures.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the request may succeed
func (e *Error) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Fetcher
type Options struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	UserAgent  string
}

// Fetcher downloads pages one at a time through a synchronous colly collector
type Fetcher struct {
	mu        sync.Mutex
	collector *colly.Collector
	opts      Options

	// state of the request in flight, reset by fetchOnce
	result     *Response
	statusCode int
	started    time.Time
}

// New creates a Fetcher whose requests are cancelled with ctx
func New(ctx context.Context, opts Options) *Fetcher {
	collectorOpts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.MaxDepth(0), // Managed by the traversal engine
		colly.IgnoreRobotsTxt(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}

	f := &Fetcher{
		collector: colly.NewCollector(collectorOpts...),
		opts:      opts,
	}
	if opts.Timeout > 0 {
		f.collector.SetRequestTimeout(opts.Timeout)
	}
	f.setupColly()
	return f
}

// setupColly registers the callbacks that capture the current response
func (f *Fetcher) setupColly() {
	f.collector.OnResponse(func(r *colly.Response) {
		f.result = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Duration:   time.Since(f.started),
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			f.statusCode = r.StatusCode
		}
	})
}

// Fetch retrieves rawURL, retrying transient failures up to the configured
// retry count. Any non-success status is returned as *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			logrus.Debugf("Retrying %s (attempt %d/%d)", rawURL, attempt, f.opts.Retries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.opts.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := f.fetchOnce(rawURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fetchErr *Error
		if !errors.As(err, &fetchErr) || !fetchErr.Transient() || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single synchronous request
func (f *Fetcher) fetchOnce(rawURL string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.result = nil
	f.statusCode = 0
	f.started = time.Now()

	if err := f.collector.Visit(rawURL); err != nil {
		return nil, &Error{URL: rawURL, StatusCode: f.statusCode, Err: err}
	}
	if f.result == nil {
		return nil, &Error{URL: rawURL, Err: errors.New("no response received")}
	}

	result := f.result
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return nil, &Error{URL: rawURL, StatusCode: result.StatusCode, Err: errors.New(http.StatusText(result.StatusCode))}
	}

	return result, nil
}
