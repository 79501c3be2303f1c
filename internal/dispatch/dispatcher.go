// Package dispatch runs delivery jobs on a bounded worker pool. A job is
// one event plus the configuration snapshot taken at acceptance; the
// processor reports an explicit outcome and the dispatcher owns the retry
// timer and the attempt budget.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/observability"
	"github.com/ggz/smsbridge/internal/ratelimit"
)

const (
	minConcurrency     = 1
	defaultQueueDepth  = 64
	defaultMaxAttempts = 5

	// Minimum delay before the first retry; subsequent retries back off
	// linearly as a multiple of this value.
	defaultBackoffBase = 10 * time.Second
)

// Result is the explicit outcome of one processing attempt.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailed
	ResultRetry
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Job is the durable unit of work for one accepted event. The settings
// snapshot travels with the job so a retry re-runs under the exact
// configuration the event was accepted with.
type Job struct {
	Event         domain.Event
	Settings      domain.Settings
	CorrelationID string
	Attempt       int
}

func (j Job) next() Job {
	j.Attempt++
	return j
}

// Processor advances one job. Process must not panic across this boundary
// on purpose; the dispatcher converts a stray panic into a terminal
// failure. GiveUp finalizes the job as failed once the attempt budget is
// spent.
type Processor interface {
	Process(ctx context.Context, job Job) (Result, string)
	GiveUp(ctx context.Context, job Job, lastReason string)
}

type Dispatcher struct {
	processor   Processor
	limiter     ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	jobs        chan Job
	concurrency int
	backoffBase time.Duration
	maxAttempts int

	retryTimers sync.WaitGroup
}

func NewDispatcher(
	processor Processor,
	limiter ratelimit.RateLimiter,
	concurrency int,
	queueDepth int,
	backoffBase time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if concurrency < minConcurrency {
		concurrency = minConcurrency
	}
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		processor:   processor,
		limiter:     limiter,
		logger:      logger,
		jobs:        make(chan Job, queueDepth),
		concurrency: concurrency,
		backoffBase: backoffBase,
		maxAttempts: maxAttempts,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Submit enqueues a job without blocking the caller. The acceptance path
// must stay fast, so a full queue is an error rather than a wait.
func (d *Dispatcher) Submit(job Job) error {
	if d == nil || d.jobs == nil {
		return fmt.Errorf("dispatcher is not initialized")
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}

	select {
	case d.jobs <- job:
		return nil
	default:
		return fmt.Errorf("delivery queue is full")
	}
}

// Start runs the worker pool until context cancellation. Jobs still waiting
// on a retry timer when the context ends are dropped; their records remain
// PENDING, which is the documented crash signature.
func (d *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			d.logger.Info("delivery worker started", zap.Int("workerId", workerID))

			for {
				select {
				case <-groupCtx.Done():
					d.logger.Info("delivery worker stopped", zap.Int("workerId", workerID))
					return nil
				case job := <-d.jobs:
					d.runJob(groupCtx, job)
				}
			}
		})
	}

	err := g.Wait()
	d.retryTimers.Wait()
	return err
}

func (d *Dispatcher) runJob(ctx context.Context, job Job) {
	if d.metrics != nil {
		d.metrics.IncWorkerInFlight()
		defer d.metrics.DecWorkerInFlight()
	}

	logger := observability.WithContextLogger(
		observability.EventLogger(d.logger, job.Event.ObservedAt),
		observability.WithCorrelationID(ctx, job.CorrelationID),
	)

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic during delivery: %v", r)
			logger.Error("delivery job panicked", zap.Any("panic", r))
			d.processor.GiveUp(ctx, job, reason)
		}
	}()

	transportLabel := strings.ToLower(job.Settings.Transport.String())
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, transportLabel); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("rate limiter wait failed, proceeding", zap.Error(err))
		}
	}

	result, reason := d.processor.Process(ctx, job)
	switch result {
	case ResultRetry:
		if job.Attempt >= d.maxAttempts {
			logger.Warn("retries exhausted",
				zap.Int("attempts", job.Attempt),
				zap.String("reason", reason),
			)
			d.processor.GiveUp(ctx, job, reason)
			return
		}

		if d.metrics != nil {
			d.metrics.IncRetryScheduled(transportLabel)
		}
		d.scheduleRetry(ctx, job.next(), logger)
	case ResultFailed:
		logger.Warn("delivery finalized as failed", zap.String("reason", reason))
	case ResultSuccess:
		logger.Debug("delivery finalized as success", zap.Int("attempt", job.Attempt))
	}
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, job Job, logger *zap.Logger) {
	delay := d.retryDelay(job.Attempt)

	d.retryTimers.Add(1)
	go func() {
		defer d.retryTimers.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := d.Submit(job); err != nil {
			logger.Error("failed to requeue retry", zap.Error(err))
			d.processor.GiveUp(ctx, job, err.Error())
		}
	}()
}

// retryDelay grows linearly with the attempt number: the wait before
// attempt N is (N-1) times the base delay.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	if attempt < 2 {
		attempt = 2
	}
	return time.Duration(attempt-1) * d.backoffBase
}
