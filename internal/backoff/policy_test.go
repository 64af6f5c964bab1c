package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frostyslav/OSGenome/internal/snp"
)

func TestWaitMonotoneUpToCap(t *testing.T) {
	t.Parallel()

	p := New(Config{BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second, DisableJitter: true})

	for _, class := range []snp.FailureClass{snp.FailureRateLimited, snp.FailureServerUnavailable} {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 8; attempt++ {
			d := p.Wait(attempt, class)
			require.GreaterOrEqual(t, d, prev, "attempt %d class %s", attempt, class)
			require.LessOrEqual(t, d, 60*time.Second)
			prev = d
		}
	}
}

func TestWaitExponentialDoubling(t *testing.T) {
	t.Parallel()

	p := New(Config{BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second, DisableJitter: true})

	require.Equal(t, 5*time.Second, p.Wait(1, snp.FailureRateLimited))
	require.Equal(t, 10*time.Second, p.Wait(2, snp.FailureRateLimited))
	require.Equal(t, 20*time.Second, p.Wait(3, snp.FailureRateLimited))
	require.Equal(t, 40*time.Second, p.Wait(4, snp.FailureRateLimited))
	require.Equal(t, 60*time.Second, p.Wait(5, snp.FailureRateLimited))
	require.Equal(t, 60*time.Second, p.Wait(6, snp.FailureRateLimited))
}

func TestWaitFlatForNetworkAndOther(t *testing.T) {
	t.Parallel()

	p := New(Config{BaseDelay: 2 * time.Second, DisableJitter: true})

	for attempt := 1; attempt <= 5; attempt++ {
		require.Equal(t, 2*time.Second, p.Wait(attempt, snp.FailureNetwork))
		require.Equal(t, 2*time.Second, p.Wait(attempt, snp.FailureOther))
	}
}

func TestWaitJitterBounds(t *testing.T) {
	t.Parallel()

	p := New(Config{BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second})

	for i := 0; i < 100; i++ {
		d := p.Wait(1, snp.FailureRateLimited)
		require.GreaterOrEqual(t, d, 4*time.Second)
		require.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestExhausted(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxRetries: 3})
	require.False(t, p.Exhausted(1))
	require.False(t, p.Exhausted(2))
	require.True(t, p.Exhausted(3))
	require.True(t, p.Exhausted(4))
	require.Equal(t, 3, p.MaxRetries())
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	p := New(Config{DisableJitter: true})
	require.Equal(t, DefaultBaseDelay, p.Wait(1, snp.FailureServerUnavailable))
	require.Equal(t, DefaultMaxRetries, p.MaxRetries())
}
