// Package pipeline runs one dedupe pass: fetch every matching document,
// extract duplicates by an identifier path, optionally sort the survivors,
// and record the outcome in run history.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rhermens/s3-dedupe/internal/fetcher"
	"github.com/rhermens/s3-dedupe/internal/model"
	"github.com/rhermens/s3-dedupe/internal/record"
	"github.com/rhermens/s3-dedupe/internal/store"
)

// Options configures a single Run.
type Options struct {
	// Pattern is the glob the source was opened with. It is only recorded.
	Pattern string

	// Identifier is the dotted path whose value identifies a record.
	Identifier string

	// SortBy, when set, is the dotted path the deduplicated records are
	// ordered by, ascending.
	SortBy string
}

// Result is the outcome of a Run.
type Result struct {
	RunID string

	// Records holds one record per identifier value.
	Records []record.Value

	// Extras holds the earlier occurrences of duplicated identifiers in
	// input order.
	Extras []record.Value

	Report *fetcher.Report

	// Dropped counts records that did not resolve the identifier path.
	Dropped int
}

// Duplicates returns the number of extra occurrences removed.
func (r *Result) Duplicates() int { return len(r.Extras) }

// Pipeline wires a Fetcher to the dedupe and sort steps.
type Pipeline struct {
	fetcher *fetcher.Fetcher
	store   store.Store
}

// New creates a Pipeline. st may be nil, in which case runs are not
// recorded.
func New(f *fetcher.Fetcher, st store.Store) *Pipeline {
	return &Pipeline{fetcher: f, store: st}
}

// Run executes the pipeline against src.
func (p *Pipeline) Run(ctx context.Context, src fetcher.Source, opts Options) (*Result, error) {
	if opts.Identifier == "" {
		return nil, eris.New("pipeline: identifier path is required")
	}

	log := zap.L().With(zap.String("source", src.Name()))
	log.Info("pipeline: starting",
		zap.String("pattern", opts.Pattern),
		zap.String("identifier", opts.Identifier),
		zap.String("sort_by", opts.SortBy),
	)

	start := time.Now()
	result := &Result{}

	var run *model.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(ctx, model.RunSpec{
			Source:     src.Name(),
			Pattern:    opts.Pattern,
			Identifier: opts.Identifier,
			SortBy:     opts.SortBy,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		result.RunID = run.ID
	}

	err := p.process(ctx, src, opts, result, log)
	p.finish(run, result, time.Since(start), err, log)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, src fetcher.Source, opts Options, result *Result, log *zap.Logger) error {
	records, report, err := p.fetcher.FetchMatching(ctx, src)
	result.Report = report
	if err != nil {
		return eris.Wrap(err, "pipeline: fetch")
	}
	log.Info("pipeline: fetched records",
		zap.Int("documents", report.Fetched),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failures)),
		zap.Int("records", len(records)),
	)

	total := len(records)
	winners := record.DedupExtractByPath(&records, record.ParsePath(opts.Identifier))
	result.Records = winners
	result.Extras = records
	result.Dropped = total - len(winners) - len(records)

	log.Info("pipeline: duplicates found", zap.Int("count", len(records)))
	log.Info("pipeline: deduplicated", zap.Int("length", len(winners)))
	if result.Dropped > 0 {
		log.Warn("pipeline: records without identifier dropped",
			zap.String("identifier", opts.Identifier),
			zap.Int("count", result.Dropped),
		)
	}

	if opts.SortBy != "" {
		if err := record.SortByPath(winners, record.ParsePath(opts.SortBy)); err != nil {
			return eris.Wrap(err, "pipeline: sort")
		}
		log.Debug("pipeline: sorted", zap.String("sort_by", opts.SortBy))
	}
	return nil
}

func (p *Pipeline) finish(run *model.Run, result *Result, elapsed time.Duration, runErr error, log *zap.Logger) {
	if runErr != nil {
		log.Error("pipeline: failed", zap.Duration("elapsed", elapsed), zap.Error(runErr))
	} else {
		log.Info("pipeline: complete",
			zap.Duration("elapsed", elapsed),
			zap.Int("records", len(result.Records)),
		)
	}
	if run == nil {
		return
	}

	summary := summarize(result, elapsed)
	// The run context may already be cancelled; history is still written.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if runErr != nil {
		err = p.store.FailRun(ctx, run.ID, summary, runErr)
	} else {
		err = p.store.CompleteRun(ctx, run.ID, summary)
	}
	if err != nil {
		log.Warn("pipeline: failed to record run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func summarize(result *Result, elapsed time.Duration) *model.RunResult {
	summary := &model.RunResult{
		Deduped:    len(result.Records),
		Duplicates: len(result.Extras),
		ElapsedMS:  elapsed.Milliseconds(),
	}
	if r := result.Report; r != nil {
		summary.Listed = r.Listed
		summary.Fetched = r.Fetched
		summary.Skipped = r.Skipped
		summary.Failed = len(r.Failures)
		summary.Records = r.Records
	}
	return summary
}

// IsMissingKey reports whether err was caused by a record lacking the sort
// path.
func IsMissingKey(err error) bool {
	var mk *record.MissingKeyError
	return errors.As(err, &mk)
}
