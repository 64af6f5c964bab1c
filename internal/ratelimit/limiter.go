// Package ratelimit bounds the aggregate request rate against SNPedia.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/frostyslav/OSGenome/internal/metrics"
)

// Limiter enforces two constraints on every dispatch: a minimum spacing
// between requests and a hard cap on concurrently in-flight requests.
// Acquire blocks until both are satisfiable; work is never dropped.
type Limiter struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// Config holds rate limiter configuration.
type Config struct {
	// Delay is the minimum spacing between dispatches. Zero disables spacing.
	Delay time.Duration
	// MaxInFlight caps concurrently outstanding requests.
	MaxInFlight int
}

// New creates a Limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxInFlight <= 0 {
		return nil, fmt.Errorf("max in-flight must be > 0, got %d", cfg.MaxInFlight)
	}
	r := rate.Inf
	if cfg.Delay > 0 {
		r = rate.Every(cfg.Delay)
	}
	return &Limiter{
		limiter: rate.NewLimiter(r, 1),
		slots:   make(chan struct{}, cfg.MaxInFlight),
	}, nil
}

// Acquire blocks until an in-flight slot and a dispatch token are both
// available, then returns a release function. The caller must invoke release
// as soon as the remote call returns; backoff sleeps must not hold the slot.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire canceled: %w", ctx.Err())
	case l.slots <- struct{}{}:
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		<-l.slots
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}

	return func() { <-l.slots }, nil
}

// ValidateBudget rejects worker counts that outpace the request spacing.
// Concurrency is bounded at 5*delay seconds; raising workers without
// proportionally raising the delay would raise the peak request rate.
func ValidateBudget(workers, maxInFlight int, delay time.Duration) error {
	if workers <= 0 {
		return fmt.Errorf("concurrency must be > 0, got %d", workers)
	}
	if maxInFlight <= 0 {
		return fmt.Errorf("max in-flight must be > 0, got %d", maxInFlight)
	}
	if delay <= 0 {
		return nil
	}
	allowed := int(5 * delay.Seconds())
	if allowed < 3 {
		allowed = 3
	}
	if workers > allowed {
		return fmt.Errorf(
			"concurrency %d exceeds budget %d for request delay %s; increase the delay proportionally",
			workers, allowed, delay,
		)
	}
	return nil
}
