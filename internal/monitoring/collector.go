package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rhermens/s3-dedupe/internal/model"
	"github.com/rhermens/s3-dedupe/internal/store"
)

// MetricsSnapshot holds a point-in-time view of recent dedupe runs.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Record metrics, summed over runs that reported a result.
	RecordsFetched    int     `json:"records_fetched"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	DuplicateRate     float64 `json:"duplicate_rate"`
	DocumentsSkipped  int     `json:"documents_skipped"`
	DocumentsFailed   int     `json:"documents_failed"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from run history.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Result != nil {
			snap.RecordsFetched += r.Result.Records
			snap.DuplicatesRemoved += r.Result.Duplicates
			snap.DocumentsSkipped += r.Result.Skipped
			snap.DocumentsFailed += r.Result.Failed
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RecordsFetched > 0 {
		snap.DuplicateRate = float64(snap.DuplicatesRemoved) / float64(snap.RecordsFetched)
	}

	return snap, nil
}
