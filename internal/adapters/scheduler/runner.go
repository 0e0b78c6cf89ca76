// Package scheduler provides the tick loop that drives the calendar scheduler.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainscheduler "github.com/target/mmk-moderation/internal/domain/scheduler"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

// Ticker fires due scheduled tasks at now and reports how many ran.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (int, error)
	Tasks() []domainscheduler.Trigger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Scheduler Ticker // Required
	Interval  time.Duration
	Logger    *slog.Logger
	Metrics   statsd.Sink
	Now       func() time.Time
}

// Runner calls Tick once at start and then on every interval until the context ends.
type Runner struct {
	scheduler Ticker
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
	now       func() time.Time
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		scheduler: opts.Scheduler,
		interval:  opts.Interval,
		logger:    opts.Logger.With("component", "scheduler_runner"),
		metrics:   opts.Metrics,
		now:       opts.Now,
	}, nil
}

// Run starts the scheduler loop and runs until the context is cancelled.
// Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// A replica started after a fire hour still catches up on the current period.
	r.tick(ctx)
	r.reportSchedule(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if r.tick(ctx) > 0 {
				r.reportSchedule(ctx)
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) int {
	ran, err := r.scheduler.Tick(ctx, r.now().UTC())
	switch {
	case err != nil && ctx.Err() != nil:
		r.logger.DebugContext(ctx, "scheduler tick cancelled", "error", err)
	case err != nil:
		r.logger.ErrorContext(ctx, "scheduler tick error", "error", err)
	case ran > 0:
		r.logger.DebugContext(ctx, "scheduler tick", "tasks_ran", ran)
	}
	if err == nil && r.metrics != nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(r.now().Unix()), nil)
	}
	return ran
}

// reportSchedule logs and gauges when each trigger fires next.
func (r *Runner) reportSchedule(ctx context.Context) {
	now := r.now().UTC()
	for _, tr := range r.scheduler.Tasks() {
		next := tr.NextFire(now)
		r.logger.InfoContext(ctx, "scheduled task", "task", tr.String(), "next_fire", next)
		if r.metrics != nil {
			r.metrics.Gauge("scheduler.next_fire_epoch", float64(next.Unix()), map[string]string{"task": tr.Name})
		}
	}
}
