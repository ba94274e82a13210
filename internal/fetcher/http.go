package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rhermens/s3-dedupe/internal/resilience"
)

// HTTPOptions configures the HTTP client.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

// HTTPClient downloads documents over HTTP, retrying 429 and 5xx responses
// with exponential backoff.
type HTTPClient struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPClient creates an HTTPClient with the given options.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "s3-dedupe/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:   opts,
	}
}

func (c *HTTPClient) policy(target string) resilience.Policy {
	return resilience.Policy{
		Attempts:       c.opts.MaxRetries,
		InitialBackoff: c.opts.BaseBackoff,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2,
		Jitter:         0.25,
		OnRetry:        resilience.LogRetry("http get", target),
	}
}

// get performs one request. Transport failures and 408/429/5xx responses
// come back as TransientError so the retry loop tries again.
func (c *HTTPClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(err, "http get")
		}
		return nil, resilience.NewTransientError(eris.Wrap(err, "http get"), 0)
	}

	if resilience.IsTransientStatus(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}
	return resp, nil
}

// Download fetches rawURL and returns the response body.
func (c *HTTPClient) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := resilience.Retry(ctx, c.policy(rawURL), func(ctx context.Context) (*http.Response, error) {
		return c.get(ctx, rawURL)
	})
	if err != nil {
		if resilience.IsTransient(err) && ctx.Err() == nil {
			return nil, resilience.Permanent(eris.Errorf("download: all %d retries exhausted: %s", c.opts.MaxRetries, err.Error()))
		}
		return nil, eris.Wrap(err, "download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// HTTPSource is a single document addressed by URL. It lists nothing when
// the last path segment does not match the pattern.
type HTTPSource struct {
	url     *url.URL
	pattern Pattern
	client  *HTTPClient
}

// NewHTTPSource creates a source for one http(s) document.
func NewHTTPSource(u *url.URL, pattern Pattern, client *HTTPClient) *HTTPSource {
	return &HTTPSource{url: u, pattern: pattern, client: client}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return s.url.String() }

// List implements Source.
func (s *HTTPSource) List(_ context.Context) ([]string, error) {
	if !s.pattern.MatchName(path.Base(s.url.Path)) {
		return nil, nil
	}
	return []string{s.url.String()}, nil
}

// Open implements Source.
func (s *HTTPSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.client.Download(ctx, key)
}
