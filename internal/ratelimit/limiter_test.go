package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveCap(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxInFlight: 0})
	require.Error(t, err)
	_, err = New(Config{MaxInFlight: -1})
	require.Error(t, err)
}

func TestAcquireCapsInFlight(t *testing.T) {
	t.Parallel()

	l, err := New(Config{MaxInFlight: 2})
	require.NoError(t, err)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			release()
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAcquireEnforcesSpacing(t *testing.T) {
	t.Parallel()

	delay := 20 * time.Millisecond
	l, err := New(Config{Delay: delay, MaxInFlight: 4})
	require.NoError(t, err)

	start := time.Now()
	const n = 4
	for i := 0; i < n; i++ {
		release, err := l.Acquire(context.Background())
		require.NoError(t, err)
		release()
	}
	// First dispatch is immediate; the remaining n-1 each wait one interval.
	require.GreaterOrEqual(t, time.Since(start), time.Duration(n-1)*delay)
}

func TestAcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	l, err := New(Config{MaxInFlight: 1})
	require.NoError(t, err)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.Error(t, err)
}

func TestAcquireReleasesSlotOnWaitError(t *testing.T) {
	t.Parallel()

	l, err := New(Config{Delay: time.Hour, MaxInFlight: 1})
	require.NoError(t, err)

	// Consume the single immediate token so the next Wait blocks.
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.Error(t, err)

	// The slot must have been returned; otherwise this would block forever.
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	select {
	case l.slots <- struct{}{}:
		<-l.slots
	case <-ctx2.Done():
		t.Fatal("in-flight slot leaked after canceled rate wait")
	}
}

func TestValidateBudget(t *testing.T) {
	t.Parallel()

	require.Error(t, ValidateBudget(0, 3, time.Second))
	require.Error(t, ValidateBudget(4, 0, time.Second))

	// Zero delay skips the proportionality check.
	require.NoError(t, ValidateBudget(16, 4, 0))

	// 1.5s delay allows up to 7 workers.
	require.NoError(t, ValidateBudget(4, 5, 1500*time.Millisecond))
	require.NoError(t, ValidateBudget(7, 5, 1500*time.Millisecond))
	require.Error(t, ValidateBudget(8, 5, 1500*time.Millisecond))

	// Very small delays still allow a floor of 3 workers.
	require.NoError(t, ValidateBudget(3, 3, 100*time.Millisecond))
	require.Error(t, ValidateBudget(4, 3, 100*time.Millisecond))
}
