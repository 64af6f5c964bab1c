// Package crawl orchestrates resumable SNPedia crawls over the worker pool.
package crawl

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/backoff"
	"github.com/frostyslav/OSGenome/internal/checkpoint"
	"github.com/frostyslav/OSGenome/internal/metrics"
	"github.com/frostyslav/OSGenome/internal/queue"
	"github.com/frostyslav/OSGenome/internal/ratelimit"
	"github.com/frostyslav/OSGenome/internal/snp"
	"github.com/frostyslav/OSGenome/internal/worker"
)

// State represents the orchestrator lifecycle within one run.
type State string

// Run states, in order.
const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateCompleted    State = "completed"
)

// DefaultCheckpointEvery is the completed-task count between periodic flushes.
const DefaultCheckpointEvery = 10

// Config carries the crawl knobs, pre-validated by the config loader.
type Config struct {
	Concurrency     int
	MaxInFlight     int
	RequestDelay    time.Duration
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	CheckpointEvery int
}

// Summary reports the outcome of one crawl run. Results is the union of all
// checkpointed records for the requested identifiers, including records
// completed in earlier runs.
type Summary struct {
	RunID     string
	Requested int
	Skipped   int
	Succeeded int
	NotFound  int
	Retries   int
	Exhausted []string
	Results   map[string]snp.Record
}

// Orchestrator drives a crawl to completion: it computes the pending set
// against the checkpoint, runs the worker pool, and flushes checkpoints so an
// interrupted run resumes without refetching completed identifiers.
type Orchestrator struct {
	store   *checkpoint.Store
	fetcher snp.Fetcher
	cfg     Config
	clock   snp.Clock
	logger  *zap.Logger

	mu    sync.Mutex
	state State
}

// New constructs an Orchestrator.
func New(
	store *checkpoint.Store,
	fetcher snp.Fetcher,
	cfg Config,
	clock snp.Clock,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = cfg.Concurrency
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if err := ratelimit.ValidateBudget(cfg.Concurrency, cfg.MaxInFlight, cfg.RequestDelay); err != nil {
		return nil, fmt.Errorf("crawl configuration: %w", err)
	}
	if clock == nil {
		clock = snp.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		state:   StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("crawl state", zap.String("state", string(s)))
}

// Run crawls the requested identifiers. Re-invoking with the same checkpoint
// and identifiers is a no-op beyond verifying completeness. On cancellation,
// in-flight fetches finish or time out, a checkpoint is flushed, and the
// context error is returned alongside the partial summary.
func (o *Orchestrator) Run(ctx context.Context, rsids []string) (Summary, error) {
	o.setState(StateInitializing)

	snap, err := o.store.Load()
	if err != nil {
		return Summary{}, fmt.Errorf("load checkpoint: %w", err)
	}

	requested := dedupe(rsids)
	completedSet := snap.CompletedSet()
	pending := make([]string, 0, len(requested))
	for _, rsid := range requested {
		if _, done := completedSet[rsid]; !done {
			pending = append(pending, rsid)
		}
	}

	summary := Summary{
		RunID:     uuid.NewString(),
		Requested: len(requested),
		Skipped:   len(requested) - len(pending),
	}

	o.logger.Info("crawl starting",
		zap.String("run_id", summary.RunID),
		zap.Int("requested", summary.Requested),
		zap.Int("pending", len(pending)),
		zap.Int("already_completed", summary.Skipped),
	)

	if len(pending) == 0 {
		o.setState(StateCompleted)
		summary.Results = resultsFor(requested, snap.Results)
		return summary, nil
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Delay:       o.cfg.RequestDelay,
		MaxInFlight: o.cfg.MaxInFlight,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("build rate limiter: %w", err)
	}
	policy := backoff.New(backoff.Config{
		BaseDelay:  o.cfg.RetryBaseDelay,
		MaxDelay:   o.cfg.RetryMaxDelay,
		MaxRetries: o.cfg.MaxRetries,
	})

	// Queue capacity covers every pending task so retry re-enqueues can
	// never block a worker.
	q := queue.New(len(pending))
	for _, rsid := range pending {
		if err := q.Enqueue(ctx, snp.Task{RSID: rsid, State: snp.TaskPending}); err != nil {
			return summary, fmt.Errorf("seed queue: %w", err)
		}
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	results := make(chan snp.Task, len(pending))
	pool := worker.NewPool(q, limiter, o.fetcher, policy, worker.Config{
		Workers: o.cfg.Concurrency,
		Timeout: o.cfg.RequestTimeout,
	}, o.logger)
	wait := pool.Start(workerCtx, results)

	o.setState(StateRunning)

	sinceFlush := 0
	remaining := len(pending)
	var runErr error

collect:
	for remaining > 0 {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break collect
		case task := <-results:
			remaining--
			summary.Retries += task.Attempt - 1
			switch {
			case task.State == snp.TaskSucceeded && task.LastClass == snp.FailureNotFound:
				summary.NotFound++
				o.complete(&snap, completedSet, task)
			case task.State == snp.TaskSucceeded:
				summary.Succeeded++
				o.complete(&snap, completedSet, task)
			case task.State == snp.TaskExhausted:
				summary.Exhausted = append(summary.Exhausted, task.RSID)
			}

			if task.State == snp.TaskSucceeded || task.State == snp.TaskExhausted {
				sinceFlush++
				if sinceFlush >= o.cfg.CheckpointEvery {
					if err := o.flush(&snap); err != nil {
						runErr = err
						break collect
					}
					sinceFlush = 0
				}
			}
		}
	}

	o.setState(StateDraining)
	stopWorkers()
	wait()

	// Capture any resolutions buffered between cancellation and shutdown.
drain:
	for {
		select {
		case task := <-results:
			if task.State == snp.TaskSucceeded {
				if task.LastClass == snp.FailureNotFound {
					summary.NotFound++
				} else {
					summary.Succeeded++
				}
				o.complete(&snap, completedSet, task)
			}
		default:
			break drain
		}
	}

	// Final flush is unconditional so completed work is never lost, even on
	// cancellation. A flush failure voids the resume guarantee and is fatal.
	if err := o.flush(&snap); err != nil {
		if runErr == nil {
			runErr = err
		}
		o.setState(StateCompleted)
		return summary, runErr
	}

	o.setState(StateCompleted)
	sort.Strings(summary.Exhausted)
	summary.Results = resultsFor(requested, snap.Results)

	o.logger.Info("crawl finished",
		zap.String("run_id", summary.RunID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("not_found", summary.NotFound),
		zap.Int("exhausted", len(summary.Exhausted)),
		zap.Int("retries", summary.Retries),
	)
	return summary, runErr
}

func (o *Orchestrator) complete(snap *checkpoint.Snapshot, completedSet map[string]struct{}, task snp.Task) {
	if _, dup := completedSet[task.RSID]; dup {
		return
	}
	completedSet[task.RSID] = struct{}{}
	snap.Completed = append(snap.Completed, task.RSID)
	snap.Results[task.RSID] = task.Record
}

func (o *Orchestrator) flush(snap *checkpoint.Snapshot) error {
	snap.SavedAt = o.clock.Now()
	if err := o.store.Save(*snap); err != nil {
		return fmt.Errorf("flush checkpoint: %w", err)
	}
	metrics.ObserveCheckpointFlush()
	o.logger.Debug("checkpoint flushed", zap.Int("completed", len(snap.Completed)))
	return nil
}

func dedupe(rsids []string) []string {
	seen := make(map[string]struct{}, len(rsids))
	out := make([]string, 0, len(rsids))
	for _, rsid := range rsids {
		if rsid == "" {
			continue
		}
		if _, dup := seen[rsid]; dup {
			continue
		}
		seen[rsid] = struct{}{}
		out = append(out, rsid)
	}
	return out
}

func resultsFor(requested []string, all map[string]snp.Record) map[string]snp.Record {
	out := make(map[string]snp.Record, len(requested))
	for _, rsid := range requested {
		if rec, ok := all[rsid]; ok {
			out[rsid] = rec
		}
	}
	return out
}
