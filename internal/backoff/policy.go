// Package backoff maps fetch failures to retry wait durations.
package backoff

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/frostyslav/OSGenome/internal/snp"
)

// Defaults applied by New when a Config field is unset.
const (
	DefaultBaseDelay  = 5 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMaxRetries = 3
	defaultJitterFrac = 0.2
)

// Config controls Policy behavior.
type Config struct {
	// BaseDelay is the first-attempt wait for retryable failures.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// MaxRetries is the number of consecutive failures after which a task
	// is Exhausted.
	MaxRetries int
	// DisableJitter removes the random spread; used by tests.
	DisableJitter bool
}

// Policy computes wait durations from (attempt, failure class). Attempts are
// 1-based. RateLimited and ServerUnavailable grow exponentially with jitter;
// Network and Other failures wait a flat base delay.
type Policy struct {
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
	jitterFrac float64
}

// New builds a Policy, filling unset fields with defaults.
func New(cfg Config) *Policy {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	jitter := defaultJitterFrac
	if cfg.DisableJitter {
		jitter = 0
	}
	return &Policy{
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		maxRetries: cfg.MaxRetries,
		jitterFrac: jitter,
	}
}

// MaxRetries returns the configured retry ceiling.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// Exhausted reports whether a task that has failed attempt times should stop
// retrying in this run.
func (p *Policy) Exhausted(attempt int) bool {
	return attempt >= p.maxRetries
}

// Wait returns the duration to sleep before retrying the given attempt.
func (p *Policy) Wait(attempt int, class snp.FailureClass) time.Duration {
	d := p.base(attempt, class)
	if p.jitterFrac <= 0 {
		return d
	}
	spread := time.Duration(float64(d) * p.jitterFrac)
	return d - spread + randomJitter(2*spread)
}

// base computes the pre-jitter wait.
func (p *Policy) base(attempt int, class snp.FailureClass) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	switch class {
	case snp.FailureRateLimited, snp.FailureServerUnavailable:
		d := p.baseDelay
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= p.maxDelay {
				return p.maxDelay
			}
		}
		if d > p.maxDelay {
			d = p.maxDelay
		}
		return d
	default:
		return p.baseDelay
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
