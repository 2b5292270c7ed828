package session

import "time"

// Budget tracks elapsed wall-clock time against a hard per-session ceiling.
// One Budget belongs to one runner call; it is not a synchronization
// primitive.
type Budget struct {
	ceiling time.Duration
	started time.Time
	now     func() time.Time
}

// NewBudget starts a budget with the given ceiling.
func NewBudget(ceiling time.Duration) *Budget {
	return newBudgetAt(ceiling, time.Now)
}

// newBudgetAt injects a clock for tests.
func newBudgetAt(ceiling time.Duration, now func() time.Time) *Budget {
	return &Budget{ceiling: ceiling, started: now(), now: now}
}

// Remaining returns the time left before the ceiling, never negative.
func (b *Budget) Remaining() time.Duration {
	left := b.ceiling - b.now().Sub(b.started)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether elapsed time has reached the ceiling.
func (b *Budget) Expired() bool {
	return b.Remaining() == 0
}

// Ceiling returns the configured ceiling.
func (b *Budget) Ceiling() time.Duration { return b.ceiling }
