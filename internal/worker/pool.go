// Package worker implements the concurrent fetch pipeline for SNPedia records.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/backoff"
	"github.com/frostyslav/OSGenome/internal/metrics"
	"github.com/frostyslav/OSGenome/internal/queue"
	"github.com/frostyslav/OSGenome/internal/ratelimit"
	"github.com/frostyslav/OSGenome/internal/snp"
)

// DefaultTimeout bounds a single remote fetch.
const DefaultTimeout = 30 * time.Second

// Config controls Pool behavior.
type Config struct {
	// Workers is the number of concurrent fetch workers.
	Workers int
	// Timeout bounds each remote fetch independently of retry timing.
	Timeout time.Duration
}

// Pool runs a fixed set of workers over the task queue. Each worker acquires
// a rate-limiter slot, invokes the fetcher with a bounded timeout, classifies
// the outcome, and either resolves the task onto the results channel or
// re-enqueues it after a backoff sleep. The sleep never holds a limiter slot.
type Pool struct {
	queue   *queue.Queue
	limiter *ratelimit.Limiter
	fetcher snp.Fetcher
	policy  *backoff.Policy
	cfg     Config
	logger  *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(
	q *queue.Queue,
	limiter *ratelimit.Limiter,
	fetcher snp.Fetcher,
	policy *backoff.Policy,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:   q,
		limiter: limiter,
		fetcher: fetcher,
		policy:  policy,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the workers. Every task fed through the queue is eventually
// sent to results as Succeeded or Exhausted, unless ctx ends first. The
// returned function blocks until all workers exit.
func (p *Pool) Start(ctx context.Context, results chan<- snp.Task) func() {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id, results)
		}(i)
	}
	return wg.Wait
}

func (p *Pool) run(ctx context.Context, id int, results chan<- snp.Task) {
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Debug("worker stopping", zap.Int("worker", id), zap.Error(err))
			}
			return
		}
		p.process(ctx, task, results)
	}
}

func (p *Pool) process(ctx context.Context, task snp.Task, results chan<- snp.Task) {
	task.Attempt++
	task.State = snp.TaskInFlight

	record, err := p.fetchOnce(ctx, task.RSID)
	if err == nil {
		task.State = snp.TaskSucceeded
		task.LastClass = snp.FailureNone
		task.Record = record
		metrics.ObserveFetch("succeeded")
		p.resolve(ctx, results, task)
		return
	}
	if ctx.Err() != nil {
		// Cancellation, not a remote failure; leave the task unresolved.
		return
	}

	class := snp.Classify(err)
	if class == snp.FailureNotFound {
		// 404s are terminal: record the identifier with an empty record so it
		// is never refetched.
		p.logger.Warn("rsid not found", zap.String("rsid", task.RSID))
		task.State = snp.TaskSucceeded
		task.LastClass = snp.FailureNotFound
		task.Record = snp.Record{}
		metrics.ObserveFetch("not_found")
		p.resolve(ctx, results, task)
		return
	}

	task.LastClass = class
	if p.policy.Exhausted(task.Attempt) {
		task.State = snp.TaskExhausted
		p.logger.Error("retries exhausted",
			zap.String("rsid", task.RSID),
			zap.Int("attempts", task.Attempt),
			zap.String("class", string(class)),
			zap.Error(err),
		)
		metrics.ObserveFetch("exhausted")
		p.resolve(ctx, results, task)
		return
	}

	task.State = snp.TaskFailed
	wait := p.policy.Wait(task.Attempt, class)
	p.logger.Warn("fetch failed, will retry",
		zap.String("rsid", task.RSID),
		zap.Int("attempt", task.Attempt),
		zap.String("class", string(class)),
		zap.Duration("backoff", wait),
		zap.Error(err),
	)
	metrics.ObserveFetch("retried")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	task.State = snp.TaskPending
	if err := p.queue.Enqueue(ctx, task); err != nil {
		p.logger.Debug("re-enqueue dropped", zap.String("rsid", task.RSID), zap.Error(err))
	}
}

// fetchOnce performs one rate-limited fetch attempt with a hard timeout.
// Panics in the fetcher are recovered and surfaced as errors so a misbehaving
// collaborator cannot crash the pool.
func (p *Pool) fetchOnce(ctx context.Context, rsid string) (record snp.Record, err error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return snp.Record{}, err
	}

	metrics.IncInFlight()
	start := time.Now()
	defer func() {
		metrics.DecInFlight()
		release()
		metrics.ObserveFetchDuration(time.Since(start))
		if r := recover(); r != nil {
			p.logger.Error("fetcher panicked",
				zap.String("rsid", rsid),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("fetch %s panicked: %v", rsid, r)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	record, err = p.fetcher.Fetch(fetchCtx, rsid)
	return record, err
}

func (p *Pool) resolve(ctx context.Context, results chan<- snp.Task, task snp.Task) {
	select {
	case <-ctx.Done():
	case results <- task:
	}
}
