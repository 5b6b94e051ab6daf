package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WithinBudget_DoesNotBlock(t *testing.T) {
	l := New(5)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_OverBudget_BlocksUntilWindowRollover(t *testing.T) {
	l := New(10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 15; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	elapsed := time.Since(start)

	// The last 5 acquisitions must wait for the 1-second window to roll.
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestAcquire_ContextCancellation(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Acquire(ctx))

	cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_ConcurrentCallers(t *testing.T) {
	l := New(20)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestAcquire_FakeClock_WindowReset(t *testing.T) {
	l := New(2)

	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	var slept time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	// Third acquisition exhausts the budget and must wait out the window.
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, time.Second, slept)
}

func TestNew_DefaultBudget(t *testing.T) {
	l := New(0)
	assert.Equal(t, defaultBudget, l.budget)
}
