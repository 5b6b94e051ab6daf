// Package ratelimit provides a cooperative rolling-window request throttle
// for outbound provider calls. It never rejects a caller, it only delays:
// once the per-window budget is spent, Acquire blocks until the window rolls
// over.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultBudget = 10

// Limiter bounds callers to a fixed number of acquisitions per rolling
// 1-second window. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	budget      int
	count       int
	windowStart time.Time

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter allowing budget acquisitions per rolling second.
// A budget <= 0 falls back to the default of 10.
func New(budget int) *Limiter {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Limiter{
		budget: budget,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until a request slot is available or the context is
// cancelled. It never returns an error other than the context's.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.now()

		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= time.Second {
			l.windowStart = now
			l.count = 0
		}

		if l.count < l.budget {
			l.count++
			l.mu.Unlock()
			return nil
		}

		// Budget spent: wait out the remainder of the window, then retry.
		// The wait happens outside the lock so other callers can observe
		// the rollover.
		wait := time.Second - now.Sub(l.windowStart)
		l.mu.Unlock()

		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
