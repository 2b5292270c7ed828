// Package store persists report snapshots and the retry queue for failed
// extraction units.
package store

import (
	"context"
	"time"

	"github.com/marketbrief/premarket-cli/internal/model"
	"github.com/marketbrief/premarket-cli/internal/resilience"
)

// RunFilter specifies criteria for listing past runs.
type RunFilter struct {
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// RunSummary is one past run's header row.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	TickerCount   int       `json:"ticker_count"`
	DegradedUnits int       `json:"degraded_units"`
}

// Store defines the persistence interface for report runs.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *model.ReportSnapshot) error
	GetSnapshot(ctx context.Context, runID string) (*model.ReportSnapshot, error)
	LatestSnapshot(ctx context.Context) (*model.ReportSnapshot, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
