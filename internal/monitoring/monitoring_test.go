package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbrief/premarket-cli/internal/config"
	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
	"github.com/marketbrief/premarket-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func saveRun(t *testing.T, st *store.SQLiteStore, generatedAt time.Time, tickers, degraded int) {
	t.Helper()
	snap := &model.ReportSnapshot{
		RunID:       uuid.NewString(),
		GeneratedAt: generatedAt,
		Tickers:     make(map[model.Ticker]*model.TickerRecord),
	}
	for i := 0; i < tickers; i++ {
		ticker := model.Ticker(string(rune('A'+i)) + "AA")
		snap.Tickers[ticker] = model.NewTickerRecord(ticker)
	}
	for i := 0; i < degraded; i++ {
		snap.Degraded = append(snap.Degraded, model.Degradation{
			Ticker: "AAA", Kind: model.SourceNews, ErrorKind: model.ErrTimeout,
		})
	}
	require.NoError(t, st.SaveSnapshot(context.Background(), snap))
}

func TestCollect(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	saveRun(t, st, now.Add(-1*time.Hour), 5, 3)
	saveRun(t, st, now.Add(-2*time.Hour), 5, 1)
	// Outside the lookback window.
	saveRun(t, st, now.Add(-48*time.Hour), 5, 5)

	require.NoError(t, st.EnqueueDLQ(context.Background(), resilience.DLQEntry{
		ID: uuid.NewString(), RunID: "r", Ticker: "AAA", Kind: model.SourceQuote,
		Error: "timeout", ErrorType: "transient", MaxRetries: 3,
		NextRetryAt: now, CreatedAt: now, LastFailedAt: now,
	}))

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.RunsTotal)
	assert.Equal(t, 30, snap.UnitsTotal)
	assert.Equal(t, 4, snap.DegradedUnits)
	assert.InDelta(t, 4.0/30.0, snap.DegradedRate, 0.001)
	assert.Equal(t, 1, snap.DLQDepth)
	assert.WithinDuration(t, now.Add(-1*time.Hour), snap.LastRunAt, time.Second)
}

func TestCollectEmpty(t *testing.T) {
	st := newTestStore(t)

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.DegradedRate)
	assert.True(t, snap.LastRunAt.IsZero())
}

func alertTypes(alerts []Alert) []AlertType {
	out := make([]AlertType, len(alerts))
	for i, a := range alerts {
		out[i] = a.Type
	}
	return out
}

func TestEvaluateDegradedRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{DegradedRateThreshold: 0.5})

	alerts := a.Evaluate(&MetricsSnapshot{UnitsTotal: 20, DegradedUnits: 15, DegradedRate: 0.75})
	assert.Contains(t, alertTypes(alerts), AlertDegradedRate)

	// Below threshold
	alerts = a.Evaluate(&MetricsSnapshot{UnitsTotal: 20, DegradedUnits: 5, DegradedRate: 0.25})
	assert.NotContains(t, alertTypes(alerts), AlertDegradedRate)

	// Too few units to alert on, even at 100% degraded
	alerts = a.Evaluate(&MetricsSnapshot{UnitsTotal: 6, DegradedUnits: 6, DegradedRate: 1.0})
	assert.Empty(t, alerts)
}

func TestEvaluateNoRecentRun(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ExpectRunEveryHours: 24})

	alerts := a.Evaluate(&MetricsSnapshot{LookbackHours: 24})
	assert.Contains(t, alertTypes(alerts), AlertNoRecentRun)

	alerts = a.Evaluate(&MetricsSnapshot{LastRunAt: time.Now().UTC().Add(-1 * time.Hour)})
	assert.NotContains(t, alertTypes(alerts), AlertNoRecentRun)
}

func TestEvaluateDLQDepth(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{DLQDepthThreshold: 25})

	alerts := a.Evaluate(&MetricsSnapshot{DLQDepth: 30})
	require.Contains(t, alertTypes(alerts), AlertDLQDepth)
	assert.Equal(t, "medium", alerts[0].Severity)

	alerts = a.Evaluate(&MetricsSnapshot{DLQDepth: 10})
	assert.Empty(t, alerts)
}

func TestSendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertDLQDepth, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertDLQDepth, Severity: "medium", Message: "queue deep", Timestamp: time.Now()},
	})

	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}

func TestSendAlertsNoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDLQDepth}})
	assert.Zero(t, sent)
}

func TestSendAlertsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertDLQDepth}})
	assert.Zero(t, sent)
}

func TestCheckerStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 1}
	checker := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop after cancel")
	}
}
