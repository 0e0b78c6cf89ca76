package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	obserrors "github.com/target/mmk-moderation/internal/observability/errors"
	"github.com/target/mmk-moderation/internal/observability/metrics"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Files   core.FileStore        // Optional: upload retention
	Config  config.CleanupConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// ReaperService applies the retention policy of the weekly cleanup.
//
// It deletes, in batches:
// - acknowledged jobs older than JobsMaxAge
// - terminal task results older than ResultsMaxAge
// - system metric samples older than MetricsMaxAge
//
// and removes stored uploads older than UploadsMaxAge.
// Events and daily analytics are never deleted.
type ReaperService struct {
	repo    core.ReaperRepository
	files   core.FileStore
	config  config.CleanupConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Config.BatchSize < 1 {
		opts.Config.BatchSize = 1000
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"jobs_max_age", opts.Config.JobsMaxAge,
		"results_max_age", opts.Config.ResultsMaxAge,
		"metrics_max_age", opts.Config.MetricsMaxAge,
		"uploads_max_age", opts.Config.UploadsMaxAge,
	)
	return &ReaperService{
		repo:    opts.Repo,
		files:   opts.Files,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// CleanupReport holds the number of rows and files removed by one cleanup run.
type CleanupReport struct {
	Jobs    int64
	Results int64
	Metrics int64
	Uploads int64
}

// Total is the number of items removed across all steps.
func (r CleanupReport) Total() int64 { return r.Jobs + r.Results + r.Metrics + r.Uploads }

type cleanupStep struct {
	operation string
	fn        func(context.Context) (int64, error)
	count     *int64
}

// RunCleanup runs every retention step. A failing step does not stop the others;
// their errors are joined.
func (s *ReaperService) RunCleanup(ctx context.Context) (CleanupReport, error) {
	start := s.now()
	var report CleanupReport

	steps := []cleanupStep{
		{operation: "delete_jobs", fn: s.deleteOldJobs, count: &report.Jobs},
		{operation: "delete_results", fn: s.deleteTerminalResults, count: &report.Results},
		{operation: "delete_metrics", fn: s.deleteOldMetrics, count: &report.Metrics},
		{operation: "prune_uploads", fn: s.pruneUploads, count: &report.Uploads},
	}

	var errs []error
	for _, step := range steps {
		count, err := step.fn(ctx)
		*step.count = count
		s.emitOperationMetric(step.operation, count, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.operation, err))
		}
	}

	err := errors.Join(errs...)
	elapsed := s.now().Sub(start)
	s.emitCleanupMetric(report, elapsed, err)

	switch {
	case err != nil && isContextCancellation(err):
		s.logger.DebugContext(ctx, "cleanup cancelled", "error", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
	default:
		s.logger.InfoContext(ctx, "cleanup complete",
			"jobs", report.Jobs,
			"results", report.Results,
			"metrics", report.Metrics,
			"uploads", report.Uploads,
			"duration", elapsed,
		)
	}
	return report, err
}

// batched calls del until it affects no rows or ctx ends.
func batched(ctx context.Context, del func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := del(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) deleteOldJobs(ctx context.Context) (int64, error) {
	return batched(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    model.JobStatusCompleted,
			MaxAge:    s.config.JobsMaxAge,
			BatchSize: s.config.BatchSize,
		})
	})
}

func (s *ReaperService) deleteTerminalResults(ctx context.Context) (int64, error) {
	return batched(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteTerminalResults(ctx, core.DeleteOlderThanParams{
			MaxAge:    s.config.ResultsMaxAge,
			BatchSize: s.config.BatchSize,
		})
	})
}

func (s *ReaperService) deleteOldMetrics(ctx context.Context) (int64, error) {
	return batched(ctx, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteOldMetrics(ctx, core.DeleteOlderThanParams{
			MaxAge:    s.config.MetricsMaxAge,
			BatchSize: s.config.BatchSize,
		})
	})
}

func (s *ReaperService) pruneUploads(ctx context.Context) (int64, error) {
	if s.files == nil || s.config.UploadsMaxAge <= 0 {
		return 0, nil
	}
	n, err := s.files.PruneOlderThan(ctx, s.now().Add(-s.config.UploadsMaxAge))
	return int64(n), err
}

func (s *ReaperService) emitCleanupMetric(report CleanupReport, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if report.Total() == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}
	err = suppressContextCancellation(err)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{"operation": operation, "result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.rows_deleted", count, metrics.CloneTags(tags))
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
