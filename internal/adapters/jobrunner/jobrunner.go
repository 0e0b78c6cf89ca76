// Package jobrunner runs the worker pool that drains the moderation job queue.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/job"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/observability/metrics"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

// Processor runs one attempt of a job and persists whatever that attempt produced.
type Processor interface {
	Process(ctx context.Context, j *model.Job) job.Outcome
	// Fail records err as a transient failure of j, finalizing it when attempts are exhausted.
	Fail(ctx context.Context, j *model.Job, err error) job.Outcome
}

// ErrPanic wraps a value recovered from a panicking processor.
var ErrPanic = errors.New("job processor panicked")

const (
	defaultErrorBackoff = time.Second
	defaultSettle       = 10 * time.Second
)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Queue     core.JobQueue
	Processor Processor
	Kind      model.Kind
	Logger    *slog.Logger
	Metrics   statsd.Sink

	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int
	// ErrorBackoff is the pause after a failed dequeue; defaults to 1s.
	ErrorBackoff time.Duration
	// SettleTimeout bounds the ack or requeue of an in-flight job after shutdown begins; defaults to 10s.
	SettleTimeout time.Duration
}

// Runner pulls jobs of one kind and hands them to a Processor.
type Runner struct {
	queue        core.JobQueue
	proc         Processor
	kind         model.Kind
	workers      int
	errorBackoff time.Duration
	settle       time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewRunner validates options and constructs a runner for a single kind.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("job queue is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("invalid job kind %q", opts.Kind)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		queue:        opts.Queue,
		proc:         opts.Processor,
		kind:         opts.Kind,
		workers:      max(opts.Concurrency, 1),
		errorBackoff: opts.ErrorBackoff,
		settle:       opts.SettleTimeout,
		logger:       logger.With("component", string(opts.Kind)+"_runner"),
		metrics:      opts.Metrics,
	}
	if r.errorBackoff <= 0 {
		r.errorBackoff = defaultErrorBackoff
	}
	if r.settle <= 0 {
		r.settle = defaultSettle
	}
	return r, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "kind", r.kind, "workers", r.workers)

	var wg sync.WaitGroup
	for i := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, i)
		}()
	}
	wg.Wait()

	r.logger.InfoContext(ctx, "job runner stopped", "kind", r.kind)
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		j, err := r.queue.Dequeue(ctx, r.kind)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.ErrorContext(ctx, "dequeue failed", "worker", worker, "error", err)
			if !sleepCtx(ctx, r.errorBackoff) {
				return
			}
			continue
		}
		if j == nil {
			continue
		}
		r.processJob(ctx, j)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, j *model.Job) {
	start := time.Now()
	emit := func(transition, result string, out job.Outcome, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			Kind:       string(j.Kind),
			Transition: transition,
			Result:     result,
			Verdict:    string(out.Verdict),
			Attempt:    j.AttemptCount,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	emit(metrics.TransitionDequeued, metrics.ResultSuccess, job.Outcome{}, nil)

	out := r.safeProcess(ctx, j)
	if out.Err != nil {
		msg := out.Err.Error()
		j.LastError = &msg
	}

	// In-flight jobs settle even when shutdown has begun so they are not left to lease expiry.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.settle)
	defer cancel()

	if out.Action == job.ActionRequeue {
		if err := r.queue.Requeue(settleCtx, j, out.Delay); err != nil {
			r.logger.ErrorContext(ctx, "requeue job failed", "job_id", j.ID, "error", err)
			emit(metrics.TransitionAckFailed, metrics.ResultError, out, err)
			return
		}
		r.logger.WarnContext(ctx, "job requeued",
			"job_id", j.ID, "attempt", j.AttemptCount, "delay", out.Delay, "error", out.Err)
		emit(metrics.TransitionRequeued, metrics.ResultError, out, out.Err)
		return
	}

	if err := r.queue.Ack(settleCtx, j); err != nil {
		r.logger.ErrorContext(ctx, "ack job failed", "job_id", j.ID, "error", err)
		emit(metrics.TransitionAckFailed, metrics.ResultError, out, err)
		return
	}
	if out.Action == job.ActionFinalizeError {
		emit(metrics.TransitionFinalized, metrics.ResultError, out, out.Err)
		return
	}
	emit(metrics.TransitionCompleted, metrics.ResultSuccess, out, nil)
}

// safeProcess converts a panic into a transient failure of that job only.
func (r *Runner) safeProcess(ctx context.Context, j *model.Job) (out job.Outcome) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err := fmt.Errorf("%w: %v", ErrPanic, rec)
		r.logger.ErrorContext(ctx, "job processor panic",
			"job_id", j.ID, "panic", rec, "stack", string(debug.Stack()))
		out = r.proc.Fail(ctx, j, err)
	}()
	return r.proc.Process(ctx, j)
}
