// Package fetcher lists documents from a source, downloads them, and merges
// the records they contain into one list.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rhermens/s3-dedupe/internal/record"
	"github.com/rhermens/s3-dedupe/internal/resilience"
)

// Source is an origin of documents: an S3 prefix, a filesystem glob, an FTP
// directory, or a single HTTP document.
type Source interface {
	// Name identifies the source in logs, e.g. "s3://bucket/prefix".
	Name() string

	// List returns the keys of the documents that match the source pattern,
	// in listing order.
	List(ctx context.Context) ([]string, error)

	// Open returns the body of the document stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// sequential is implemented by sources whose documents are read one at a
// time regardless of the configured concurrency.
type sequential interface {
	Sequential() bool
}

// Options configures a Fetcher.
type Options struct {
	// Concurrency bounds in-flight downloads. Zero or negative is unbounded.
	Concurrency int

	// RateLimit caps downloads started per second. Zero disables the limit.
	RateLimit float64

	// Retry is applied to every download.
	Retry resilience.Policy

	// TolerateFailures keeps going when a download fails, collecting the
	// failure in the report instead of aborting the run.
	TolerateFailures bool
}

// FetchError is a failed download of a single document.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Report summarises one FetchMatching call.
type Report struct {
	Source   string
	Listed   int
	Fetched  int
	Skipped  int
	Records  int
	Failures []*FetchError
	Elapsed  time.Duration
}

// Fetcher downloads and decodes every document of a source.
type Fetcher struct {
	opts    Options
	limiter *rate.Limiter
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{opts: opts}
	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), 1)
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

type slot struct {
	records []record.Value
	skipped bool
	failure *FetchError
}

// FetchMatching lists src, downloads every listed document, and returns
// their records flattened in listing order. Downloads run concurrently but
// completion order never affects the result.
//
// A failed download aborts the whole call unless TolerateFailures is set.
// Documents that fail to decode are skipped with a warning.
func (f *Fetcher) FetchMatching(ctx context.Context, src Source) ([]record.Value, *Report, error) {
	start := time.Now()
	report := &Report{Source: src.Name()}

	keys, err := src.List(ctx)
	if err != nil {
		return nil, report, eris.Wrapf(err, "fetcher: list %s", src.Name())
	}
	report.Listed = len(keys)
	zap.L().Info("fetcher: listed documents",
		zap.String("source", src.Name()),
		zap.Int("count", len(keys)),
	)

	slots := make([]slot, len(keys))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.limitFor(src))
	for i, key := range keys {
		g.Go(func() error {
			body, err := f.download(gCtx, src, key)
			if err != nil {
				ferr := &FetchError{Key: key, Err: err}
				if f.opts.TolerateFailures && ctx.Err() == nil {
					zap.L().Warn("fetcher: download failed, continuing",
						zap.String("key", key),
						zap.Error(err),
					)
					slots[i].failure = ferr
					return nil
				}
				return ferr
			}

			recs, err := DecodeDocument(body)
			if err != nil {
				zap.L().Warn("fetcher: skipping document",
					zap.String("key", key),
					zap.Error(err),
				)
				slots[i].skipped = true
				return nil
			}
			zap.L().Debug("fetcher: decoded document",
				zap.String("key", key),
				zap.Int("records", len(recs)),
			)
			slots[i].records = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Elapsed = time.Since(start)
		return nil, report, eris.Wrapf(err, "fetcher: %s", src.Name())
	}

	var out []record.Value
	for _, s := range slots {
		switch {
		case s.failure != nil:
			report.Failures = append(report.Failures, s.failure)
		case s.skipped:
			report.Fetched++
			report.Skipped++
		default:
			report.Fetched++
			out = append(out, s.records...)
		}
	}
	report.Records = len(out)
	report.Elapsed = time.Since(start)
	return out, report, nil
}

func (f *Fetcher) limitFor(src Source) int {
	if s, ok := src.(sequential); ok && s.Sequential() {
		return 1
	}
	if f.opts.Concurrency <= 0 {
		return -1
	}
	return f.opts.Concurrency
}

func (f *Fetcher) download(ctx context.Context, src Source, key string) ([]byte, error) {
	policy := f.opts.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry("download", key)
	}

	return resilience.Retry(ctx, policy, func(ctx context.Context) ([]byte, error) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limiter wait")
			}
		}

		body, err := src.Open(ctx, key)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck

		data, err := io.ReadAll(body)
		if err != nil {
			return nil, eris.Wrap(err, "read body")
		}
		return data, nil
	})
}
