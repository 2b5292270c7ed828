// Package gate bounds the number of simultaneous browser sessions for a run.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission controller: at most capacity leases are
// outstanding at any instant, independent of how work is partitioned across
// tickers and sources. Waiters are woken in FIFO-ish order; every blocked
// Acquire eventually succeeds once capacity frees up.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64

	outstanding atomic.Int64
	peak        atomic.Int64
}

// Lease is one admission slot. Release is safe to call more than once; only
// the first call returns the slot.
type Lease struct {
	gate *Gate
	once sync.Once
}

// New creates a Gate with the given capacity.
func New(capacity int) (*Gate, error) {
	if capacity <= 0 {
		return nil, eris.Errorf("gate: capacity must be positive, got %d", capacity)
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}, nil
}

// Acquire blocks the calling goroutine until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Lease, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "gate: acquire")
	}

	n := g.outstanding.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &Lease{gate: g}, nil
}

// Release returns the lease's slot. Subsequent calls are no-ops.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.gate.outstanding.Add(-1)
		l.gate.sem.Release(1)
	})
}

// Capacity returns the configured limit.
func (g *Gate) Capacity() int { return int(g.capacity) }

// Outstanding returns the current number of leases held.
func (g *Gate) Outstanding() int { return int(g.outstanding.Load()) }

// Peak returns the highest number of leases ever held at once. It exists so
// tests can assert the capacity invariant across a whole run.
func (g *Gate) Peak() int { return int(g.peak.Load()) }
