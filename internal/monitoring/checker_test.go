package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhermens/s3-dedupe/internal/config"
	"github.com/rhermens/s3-dedupe/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	st := &mockStore{}
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	// Let it start then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	st := &mockStore{}
	checker := NewChecker(NewCollector(st), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{
		CheckIntervalSecs: 0,
	})
	assert.NotNil(t, checker)

	// Start and immediately cancel to verify it doesn't panic.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_Check(t *testing.T) {
	now := time.Now().UTC()
	st := &mockStore{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: now, Result: &model.RunResult{Records: 4, Failed: 1}},
	}}
	cfg := config.MonitoringConfig{LookbackWindowHours: 24, FailureRateThreshold: 0.10}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	snap, alerts := checker.Check(context.Background())
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.RunsComplete)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFetchFailures, alerts[0].Type)
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&mockStore{listErr: errors.New("boom")}), NewAlerter(cfg), cfg)

	snap, alerts := checker.Check(context.Background())
	assert.Nil(t, snap)
	assert.Nil(t, alerts)
}

func TestChecker_RepeatedAlertSentOnce(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	now := time.Now().UTC()
	st := &mockStore{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: now, Result: &model.RunResult{Records: 4, Failed: 1}},
	}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, FailureRateThreshold: 0.10}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	_, alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, int32(1), received.Load())

	// Still breached: reported, not re-sent.
	_, alerts = checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, int32(1), received.Load())

	// Cleared, then breached again: sent again.
	st.runs = nil
	_, alerts = checker.Check(context.Background())
	assert.Empty(t, alerts)

	st.runs = []model.Run{
		{ID: "2", Status: model.RunStatusComplete, CreatedAt: now, Result: &model.RunResult{Records: 2, Failed: 3}},
	}
	_, alerts = checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	st := &mockStore{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: time.Now().UTC(), Result: &model.RunResult{Failed: 1}},
	}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, CheckIntervalSecs: 3600}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return received.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
