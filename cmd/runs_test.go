package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhermens/s3-dedupe/internal/model"
	"github.com/rhermens/s3-dedupe/internal/monitoring"
	"github.com/rhermens/s3-dedupe/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Spec:      model.RunSpec{Source: "s3://exports/orders", Pattern: "*.json", Identifier: "id"},
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Deduped: 120, Duplicates: 7, ElapsedMS: 2500},
			CreatedAt: now,
			UpdatedAt: now.Add(3 * time.Second),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Spec:      model.RunSpec{Source: "file:///var/data", Pattern: "*.json", Identifier: "id"},
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "s3://exports/orders")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "120")
	assert.Contains(t, output, "2.5s")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestFormatRunsList_LongSource(t *testing.T) {
	runs := []model.Run{{
		ID:     "1",
		Spec:   model.RunSpec{Source: "s3://a-very-long-bucket-name/with/a/deeply/nested/prefix/path"},
		Status: model.RunStatusFailed,
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	assert.Contains(t, buf.String(), "s3://a-very-long-bucket-name/with/a/...")
}

func TestRunsStats(t *testing.T) {
	runs := []model.Run{
		{ID: "1", Status: model.RunStatusComplete, Result: &model.RunResult{Records: 10, Duplicates: 2, ElapsedMS: 1000}},
		{ID: "2", Status: model.RunStatusComplete, Result: &model.RunResult{Records: 5, Duplicates: 1, ElapsedMS: 3000}},
		{ID: "3", Status: model.RunStatusFailed, Result: &model.RunResult{Records: 4}},
		{ID: "4", Status: model.RunStatusRunning},
	}

	stats := computeRunStats(runs)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Complete)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 19, stats.Records)
	assert.Equal(t, 3, stats.Duplicates)
	assert.InDelta(t, 2.0, stats.AvgDurSecs, 0.001)

	var buf bytes.Buffer
	formatRunStats(&buf, stats)
	assert.Contains(t, buf.String(), "Total runs:")
	assert.Contains(t, buf.String(), "Avg duration:")
	assert.Contains(t, buf.String(), "2.0s")
}

func TestRunsStats_Empty(t *testing.T) {
	stats := computeRunStats(nil)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AvgDurSecs)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestRunsList_HistoryDisabled(t *testing.T) {
	cfg = loadTestConfig(t)

	runsListCmd.SetContext(context.Background())
	defer runsListCmd.SetContext(nil)

	err := runsListCmd.RunE(runsListCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run history is disabled")
}

func TestRunsCommands_ReadRecordedRun(t *testing.T) {
	cfg = loadTestConfig(t)
	resetRunFlags(t)
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "runs.db")

	dir := writeDocs(t, map[string]string{
		"a.json": `[{"id":1},{"id":2}]`,
		"b.json": `[{"id":1}]`,
	})
	runCmd.SetOut(&bytes.Buffer{})
	runCmd.SetContext(context.Background())
	require.NoError(t, runCmd.RunE(runCmd, []string{"file://" + dir}))

	// runs list
	var list bytes.Buffer
	runsListCmd.SetOut(&list)
	runsListCmd.SetContext(context.Background())
	defer func() {
		runsListCmd.SetOut(nil)
		runsListCmd.SetContext(nil)
	}()
	require.NoError(t, runsListCmd.RunE(runsListCmd, nil))
	assert.Contains(t, list.String(), "file://"+dir)
	assert.Contains(t, list.String(), "complete")

	// runs show
	ctx := context.Background()
	st, err := requireStore(ctx)
	require.NoError(t, err)
	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 1)

	var show bytes.Buffer
	runsShowCmd.SetOut(&show)
	runsShowCmd.SetContext(ctx)
	defer func() {
		runsShowCmd.SetOut(nil)
		runsShowCmd.SetContext(nil)
	}()
	require.NoError(t, runsShowCmd.RunE(runsShowCmd, []string{runs[0].ID}))

	var got model.Run
	require.NoError(t, json.Unmarshal(show.Bytes(), &got))
	assert.Equal(t, runs[0].ID, got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.Deduped)
	assert.Equal(t, 1, got.Result.Duplicates)
	assert.Equal(t, 3, got.Result.Records)
}

func TestRunsCheck_Snapshot(t *testing.T) {
	cfg = loadTestConfig(t)
	resetRunFlags(t)
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "runs.db")

	dir := writeDocs(t, map[string]string{
		"a.json": `[{"id":"x"},{"id":"y"}]`,
		"b.json": `{"id":"x"}`,
	})
	runCmd.SetOut(&bytes.Buffer{})
	runCmd.SetContext(context.Background())
	require.NoError(t, runCmd.RunE(runCmd, []string{"file://" + dir}))

	var out, alerts bytes.Buffer
	runsCheckCmd.SetOut(&out)
	runsCheckCmd.SetErr(&alerts)
	runsCheckCmd.SetContext(context.Background())
	defer func() {
		runsCheckCmd.SetOut(nil)
		runsCheckCmd.SetErr(nil)
		runsCheckCmd.SetContext(nil)
	}()
	require.NoError(t, runsCheckCmd.RunE(runsCheckCmd, nil))

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsComplete)
	assert.Equal(t, 3, snap.RecordsFetched)
	assert.Equal(t, 1, snap.DuplicatesRemoved)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Empty(t, alerts.String())
}

func TestRunsCheck_HistoryDisabled(t *testing.T) {
	cfg = loadTestConfig(t)

	runsCheckCmd.SetContext(context.Background())
	defer runsCheckCmd.SetContext(nil)

	err := runsCheckCmd.RunE(runsCheckCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run history is disabled")
}
