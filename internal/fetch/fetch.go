// Package fetch downloads partner pages, optionally through a headless
// browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/lisaapatel/partnerscan/internal/extract"
)

const (
	DefaultUserAgent  = "PartnerPortrayalScanner/1.0 (compliance-monitoring; +https://example.com/bot)"
	DefaultTimeout    = 25 * time.Second
	DefaultRetryDelay = time.Second

	// StatusFailed is the status reported when no response was received.
	StatusFailed = -1

	maxAttempts  = 2
	maxBodyBytes = 20 << 20
)

// Result is the outcome of fetching one URL. A failed fetch has Err set,
// StatusCode StatusFailed and FinalURL equal to URL.
type Result struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Title      string

	// Screenshot is the path of a saved full-page screenshot, if any.
	Screenshot string
	Rendered   bool
	FetchedAt  time.Time
	Duration   time.Duration
	Err        error
}

// OK reports whether a response was received.
func (r *Result) OK() bool {
	return r.Err == nil
}

// FetchError reports a URL that could not be fetched after every attempt.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Renderer loads a page in a browser so script-built content is present.
type Renderer interface {
	Render(ctx context.Context, url, screenshotPath string) (*Result, error)
}

// Options configures a Client. Zero values take the defaults.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RetryDelay time.Duration

	// Renderer, when set, is tried first; any render failure falls back to
	// a plain HTTP fetch.
	Renderer Renderer

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client fetches pages. It is safe for sequential use by one scan.
type Client struct {
	http       *http.Client
	userAgent  string
	retryDelay time.Duration
	renderer   Renderer
	logger     *zap.Logger
}

// New builds a Client from opts.
func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent:  opts.UserAgent,
		retryDelay: opts.RetryDelay,
		renderer:   opts.Renderer,
		logger:     logger,
	}
}

// Fetch retrieves url. It never returns nil; failures are reported through
// Result.Err. screenshotPath is only used by the renderer.
func (c *Client) Fetch(ctx context.Context, url, screenshotPath string) *Result {
	start := time.Now()

	if c.renderer != nil {
		res, err := c.renderer.Render(ctx, url, screenshotPath)
		if err == nil {
			res.Rendered = true
			res.FetchedAt = time.Now().UTC()
			res.Duration = time.Since(start)
			return res
		}
		c.logger.Warn("render failed, falling back to http", zap.String("url", url), zap.Error(err))
	}

	res := c.fetchHTTP(ctx, url)
	res.FetchedAt = time.Now().UTC()
	res.Duration = time.Since(start)
	return res
}

func (c *Client) fetchHTTP(ctx context.Context, url string) *Result {
	attempts := 0
	op := func() (*Result, error) {
		attempts++
		res, err := c.get(ctx, url)
		if err != nil {
			c.logger.Debug("fetch attempt failed",
				zap.String("url", url),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return res, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return &Result{
			URL:        url,
			FinalURL:   url,
			StatusCode: StatusFailed,
			Err:        &FetchError{URL: url, Attempts: attempts, Err: unwrapPermanent(err)},
		}
	}
	return res
}

// get performs one GET. Any HTTP status is a response; only transport
// and read failures are errors.
func (c *Client) get(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       body,
		Title:      extract.Title(body),
	}, nil
}

// decodeBody reads the response as UTF-8, converting from the charset
// declared in headers or markup.
func decodeBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, maxBodyBytes)
	r, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset: keep the raw bytes.
		r = limited
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}
