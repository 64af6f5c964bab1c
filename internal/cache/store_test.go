package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, maxEntries int, ttl time.Duration, clock *fakeClock) *Store {
	t.Helper()
	s, err := New(Config{MaxEntries: maxEntries, TTL: ttl, Clock: clock})
	require.NoError(t, err)
	return s
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxEntries: 0})
	require.Error(t, err)
	_, err = New(Config{MaxEntries: -3})
	require.Error(t, err)
}

func TestGetAndSet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 4, time.Hour, newFakeClock())
	_, ok := s.Get("a")
	require.False(t, ok)

	s.Set("a", "one")
	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "one", got)

	s.Set("a", "two")
	got, _ = s.Get("a")
	require.Equal(t, "two", got)
	require.Equal(t, 1, s.Len())
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 3, time.Hour, newFakeClock())
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Set("d", 4)
	_, ok = s.Get("b")
	require.False(t, ok)
	for _, key := range []string{"a", "c", "d"} {
		_, ok := s.Get(key)
		require.True(t, ok, "key %q must survive eviction", key)
	}
	require.Equal(t, uint64(1), s.Stats().Evictions)
}

func TestSetRefreshesRecency(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 2, time.Hour, newFakeClock())
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 10) // "b" is now least recently used
	s.Set("c", 3)

	_, ok := s.Get("b")
	require.False(t, ok)
	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, got)
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(t, 4, 10*time.Minute, clock)
	s.Set("a", 1)

	clock.advance(9 * time.Minute)
	_, ok := s.Get("a")
	require.True(t, ok)

	clock.advance(time.Minute)
	_, ok = s.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, s.Len())

	st := s.Stats()
	require.Equal(t, uint64(1), st.Expirations)
	// Expiry counts as a miss, not an eviction.
	require.Equal(t, uint64(0), st.Evictions)
}

func TestSetResetsTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(t, 4, 10*time.Minute, clock)
	s.Set("a", 1)

	clock.advance(9 * time.Minute)
	s.Set("a", 2)
	clock.advance(9 * time.Minute)

	got, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 4, time.Hour, newFakeClock())
	s.Set("a", 1)
	require.True(t, s.Invalidate("a"))
	require.False(t, s.Invalidate("a"))
	_, ok := s.Get("a")
	require.False(t, ok)
}

func TestClearPreservesCounters(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 4, time.Hour, newFakeClock())
	s.Set("a", 1)
	s.Set("b", 2)
	_, _ = s.Get("a")
	_, _ = s.Get("missing")

	require.Equal(t, 2, s.Clear())
	require.Equal(t, 0, s.Len())

	st := s.Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)

	// The store keeps working after Clear.
	s.Set("c", 3)
	got, ok := s.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, got)
}

func TestStatsHitRate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 4, time.Hour, newFakeClock())
	require.Zero(t, s.Stats().HitRate)

	s.Set("a", 1)
	_, _ = s.Get("a")
	_, _ = s.Get("a")
	_, _ = s.Get("missing")
	_, _ = s.Get("missing")

	st := s.Stats()
	require.Equal(t, uint64(2), st.Hits)
	require.Equal(t, uint64(2), st.Misses)
	require.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 16, time.Hour, newFakeClock())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%20)
				s.Set(key, n)
				_, _ = s.Get(key)
			}
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, s.Len(), 16)
}
