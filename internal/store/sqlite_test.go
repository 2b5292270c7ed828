package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleSnapshot(runID string, generatedAt time.Time) *model.ReportSnapshot {
	aapl := model.Ticker("AAPL")
	record := model.NewTickerRecord(aapl)
	record.Fold(model.Success(aapl, model.SourceQuote, &model.QuoteData{Price: 189.12, Volume: 52000000}))
	record.Fold(model.Failure(aapl, model.SourceNews, model.ErrTimeout, "article crawl timed out"))

	return &model.ReportSnapshot{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Tickers:     map[model.Ticker]*model.TickerRecord{aapl: record},
		Degraded: []model.Degradation{
			{Ticker: aapl, Kind: model.SourceNews, ErrorKind: model.ErrTimeout, Detail: "article crawl timed out"},
		},
	}
}

// --- Snapshots ---

func TestSQLite_Snapshot_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("run-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, st.SaveSnapshot(ctx, snap))

	got, err := st.GetSnapshot(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)

	record := got.Tickers["AAPL"]
	require.NotNil(t, record)

	// Payload types survive the round trip through the kind tag.
	quote, ok := record.Results[model.SourceQuote].Payload.(*model.QuoteData)
	require.True(t, ok)
	assert.Equal(t, 189.12, quote.Price)
	assert.Equal(t, model.ErrTimeout, record.Results[model.SourceNews].ErrorKind)
}

func TestSQLite_Snapshot_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetSnapshot(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Snapshot_Latest(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("run-old", base.Add(-time.Hour))))
	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("run-new", base)))

	got, err := st.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-new", got.RunID)
}

func TestSQLite_Snapshot_LatestEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("run-1", base.Add(-2*time.Hour))))
	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("run-2", base.Add(-time.Hour))))
	require.NoError(t, st.SaveSnapshot(ctx, sampleSnapshot("run-3", base)))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].RunID, "newest first")
	assert.Equal(t, 1, runs[0].TickerCount)
	assert.Equal(t, 1, runs[0].DegradedUnits)

	runs, err = st.ListRuns(ctx, RunFilter{Since: base.Add(-90 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].RunID)
}

// --- Dead letter queue ---

func sampleDLQEntry(id string) resilience.DLQEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return resilience.DLQEntry{
		ID:           id,
		RunID:        "run-1",
		Ticker:       model.Ticker("NVDA"),
		Kind:         model.SourceNews,
		Error:        "article crawl timed out",
		ErrorKind:    model.ErrTimeout,
		ErrorType:    "transient",
		MaxRetries:   3,
		NextRetryAt:  now.Add(-time.Minute),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}

func TestSQLite_DLQ_EnqueueAndDequeue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, sampleDLQEntry("dlq-1")))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.Ticker("NVDA"), entries[0].Ticker)
	assert.Equal(t, model.SourceNews, entries[0].Kind)
	assert.Equal(t, model.ErrTimeout, entries[0].ErrorKind)
	assert.True(t, entries[0].CanRetry())
}

func TestSQLite_DLQ_FilterByErrorType(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	transient := sampleDLQEntry("dlq-t")
	permanent := sampleDLQEntry("dlq-p")
	permanent.ErrorType = "permanent"
	permanent.ErrorKind = model.ErrExtractionSchemaMismatch
	require.NoError(t, st.EnqueueDLQ(ctx, transient))
	require.NoError(t, st.EnqueueDLQ(ctx, permanent))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dlq-t", entries[0].ID)
}

func TestSQLite_DLQ_SkipsFutureAndExhaustedEntries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	future := sampleDLQEntry("dlq-future")
	future.NextRetryAt = time.Now().UTC().Add(time.Hour)
	exhausted := sampleDLQEntry("dlq-exhausted")
	exhausted.RetryCount = 3
	require.NoError(t, st.EnqueueDLQ(ctx, future))
	require.NoError(t, st.EnqueueDLQ(ctx, exhausted))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_DLQ_IncrementRetry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, sampleDLQEntry("dlq-1")))
	require.NoError(t, st.IncrementDLQRetry(ctx, "dlq-1",
		time.Now().UTC().Add(-time.Second), "still timing out"))

	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Equal(t, "still timing out", entries[0].Error)
}

func TestSQLite_DLQ_IncrementMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.IncrementDLQRetry(context.Background(), "nope", time.Now(), "x")
	assert.Error(t, err)
}

func TestSQLite_DLQ_Remove(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnqueueDLQ(ctx, sampleDLQEntry("dlq-1")))
	require.NoError(t, st.RemoveDLQ(ctx, "dlq-1"))

	n, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, st.RemoveDLQ(ctx, "dlq-1"))
}
