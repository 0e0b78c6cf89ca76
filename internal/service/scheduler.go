package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/core"
	domainscheduler "github.com/target/mmk-moderation/internal/domain/scheduler"
	"github.com/target/mmk-moderation/internal/observability/metrics"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

// Scheduled task names. They are also the task_name column of scheduled_runs.
const (
	TaskDailyRollup   = "daily-rollup"
	TaskWeeklyCleanup = "weekly-cleanup"
)

// Rollupper runs the daily analytics rollup for a fire time.
type Rollupper interface {
	RollupRecent(ctx context.Context, fire time.Time) error
}

// Cleaner runs the retention cleanup.
type Cleaner interface {
	RunCleanup(ctx context.Context) (CleanupReport, error)
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Runs    core.ScheduledRunRepository // Required
	Rollup  Rollupper                   // Required
	Cleanup Cleaner                     // Required
	Config  config.SchedulerConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// SchedulerService fires the calendar tasks. Each (task, period) runs at most once
// across replicas because the fire is claimed in scheduled_runs before the action runs.
type SchedulerService struct {
	tasks     []domainscheduler.Task
	processor *domainscheduler.TaskProcessor
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Rollup == nil {
		return nil, errors.New("rollup action is required")
	}
	if opts.Cleanup == nil {
		return nil, errors.New("cleanup action is required")
	}
	processor, err := domainscheduler.NewTaskProcessor(domainscheduler.TaskProcessorOptions{
		Store:  opts.Runs,
		MaxLag: opts.Config.MaxLag,
	})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cleanup := opts.Cleanup
	tasks := []domainscheduler.Task{
		{
			Trigger: domainscheduler.Daily(TaskDailyRollup, opts.Config.RollupHour),
			Run:     opts.Rollup.RollupRecent,
		},
		{
			Trigger: domainscheduler.Weekly(TaskWeeklyCleanup, time.Weekday(opts.Config.CleanupWeekday), opts.Config.CleanupHour),
			Run: func(ctx context.Context, _ time.Time) error {
				_, err := cleanup.RunCleanup(ctx)
				return err
			},
		},
	}
	for _, task := range tasks {
		if err := task.Trigger.Validate(); err != nil {
			return nil, fmt.Errorf("trigger %s: %w", task.Trigger.Name, err)
		}
	}

	return &SchedulerService{
		tasks:     tasks,
		processor: processor,
		logger:    logger.With("component", "scheduler_service"),
		metrics:   opts.Metrics,
	}, nil
}

// Tasks returns the configured triggers.
func (s *SchedulerService) Tasks() []domainscheduler.Trigger {
	out := make([]domainscheduler.Trigger, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Trigger)
	}
	return out
}

// Tick fires every task whose most recent period has not been claimed yet.
// It returns the number of tasks that ran. One task failing does not stop the others.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	ran := 0
	var errs []error

	for _, task := range s.tasks {
		res, err := s.processor.Process(ctx, domainscheduler.ProcessParams{Task: task, Now: now})
		if err != nil {
			errs = append(errs, err)
			s.logger.ErrorContext(ctx, "scheduled task failed", "task", task.Trigger.Name, "error", err)
			continue
		}
		switch {
		case res.Skipped:
			s.logger.WarnContext(ctx, "scheduled fire skipped, too far behind",
				"task", task.Trigger.Name, "fire", res.Fire)
		case res.Ran:
			ran++
			s.logger.InfoContext(ctx, "scheduled task ran", "task", task.Trigger.Name, "fire_key", res.FireKey)
		}
	}

	err := errors.Join(errs...)
	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case ran == 0:
		result = metrics.ResultNoop
	}
	metrics.EmitTask(s.metrics, metrics.TaskMetric{
		Task:     "scheduler.tick",
		Result:   result,
		Rows:     int64(ran),
		Duration: time.Since(start),
		Err:      err,
	})
	return ran, err
}
