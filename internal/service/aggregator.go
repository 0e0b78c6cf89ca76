package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"github.com/target/mmk-moderation/internal/observability/metrics"
	"github.com/target/mmk-moderation/internal/observability/statsd"
	"golang.org/x/sync/errgroup"
)

const (
	// MetricRollupDuration is the system metric recorded after each rollup.
	MetricRollupDuration = "analytics.rollup_duration"

	// MinSummaryDays and MaxSummaryDays bound the summary window.
	MinSummaryDays = 1
	MaxSummaryDays = 30
	// DefaultSummaryDays is used when the caller does not choose a window.
	DefaultSummaryDays = 7
)

// AggregatorServiceOptions groups dependencies for AggregatorService.
type AggregatorServiceOptions struct {
	Events    core.EventRepository     // Required
	Analytics core.AnalyticsRepository // Required
	Metrics   core.MetricRepository    // Optional: rollup duration samples
	Sink      statsd.Sink              // Optional
	Logger    *slog.Logger
	Now       func() time.Time
}

// AggregatorService builds and reads the daily analytics rollup.
type AggregatorService struct {
	events    core.EventRepository
	analytics core.AnalyticsRepository
	metrics   core.MetricRepository
	sink      statsd.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewAggregatorService constructs an AggregatorService.
func NewAggregatorService(opts AggregatorServiceOptions) (*AggregatorService, error) {
	if opts.Events == nil {
		return nil, errors.New("EventRepository is required")
	}
	if opts.Analytics == nil {
		return nil, errors.New("AnalyticsRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AggregatorService{
		events:    opts.Events,
		analytics: opts.Analytics,
		metrics:   opts.Metrics,
		sink:      opts.Sink,
		logger:    logger.With("component", "aggregator"),
		now:       now,
	}, nil
}

// Rollup recomputes and overwrites the rows of the UTC day containing day, one per kind.
// Running it twice for the same day yields the same rows apart from updated_at.
func (s *AggregatorService) Rollup(ctx context.Context, day time.Time) ([]model.DailyAnalytics, error) {
	day = utcDay(day)
	kinds := model.Kinds()
	rows := make([]model.DailyAnalytics, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			stats, err := s.events.DailyStats(gctx, day, kind)
			if err != nil {
				return fmt.Errorf("daily stats %s: %w", kind, err)
			}
			row := model.DailyAnalytics{Date: day, SourceType: kind, DailyStats: normalizeStats(kind, stats)}
			if err := s.analytics.UpsertDaily(gctx, row); err != nil {
				return fmt.Errorf("upsert %s: %w", kind, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// normalizeStats applies the per-kind byte total convention: bytes are counted for images only.
func normalizeStats(kind model.Kind, stats model.DailyStats) model.DailyStats {
	if kind != model.KindImage {
		stats.TotalFileSize = nil
		return stats
	}
	if stats.TotalFileSize == nil {
		var zero int64
		stats.TotalFileSize = &zero
	}
	return stats
}

// RollupRecent rolls up the day before fire and the day of fire.
// It is the action of the daily scheduled trigger.
func (s *AggregatorService) RollupRecent(ctx context.Context, fire time.Time) error {
	start := s.now()
	today := utcDay(fire)
	days := []time.Time{today.AddDate(0, 0, -1), today}

	var rowCount int64
	var errs []error
	for _, day := range days {
		rows, err := s.Rollup(ctx, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("rollup %s: %w", day.Format(time.DateOnly), err))
			continue
		}
		rowCount += int64(len(rows))
	}
	elapsed := s.now().Sub(start)
	err := errors.Join(errs...)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
		s.logger.ErrorContext(ctx, "daily rollup failed", "error", err)
	} else {
		s.logger.InfoContext(ctx, "daily rollup complete",
			"from", days[0].Format(time.DateOnly), "to", today.Format(time.DateOnly), "duration", elapsed)
	}
	metrics.EmitTask(s.sink, metrics.TaskMetric{Task: "analytics.rollup", Result: result, Rows: rowCount, Duration: elapsed, Err: err})
	s.recordDuration(ctx, elapsed)
	return err
}

func (s *AggregatorService) recordDuration(ctx context.Context, d time.Duration) {
	if s.metrics == nil {
		return
	}
	unit := "ms"
	if err := s.metrics.Record(ctx, model.SystemMetric{
		Name:      MetricRollupDuration,
		Value:     float64(d.Milliseconds()),
		Unit:      &unit,
		Timestamp: s.now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "record rollup duration failed", "error", err)
	}
}

// Summary reports the last days days ending today (UTC), with a zero-filled daily breakdown.
func (s *AggregatorService) Summary(ctx context.Context, days int) (*model.AnalyticsSummary, error) {
	if days < MinSummaryDays || days > MaxSummaryDays {
		return nil, apperrors.ValidationField("days", fmt.Sprintf("days must be between %d and %d", MinSummaryDays, MaxSummaryDays))
	}
	end := utcDay(s.now())
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := s.analytics.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list daily analytics: %w", err)
	}

	summary := &model.AnalyticsSummary{
		Period:         fmt.Sprintf("Last %d days", days),
		BySource:       make(map[model.Kind]model.VerdictCounts, len(model.Kinds())),
		ByVerdict:      make(map[model.Verdict]int, len(model.Verdicts())),
		DailyBreakdown: make([]model.DailyBreakdown, 0, days),
	}
	for _, kind := range model.Kinds() {
		summary.BySource[kind] = model.VerdictCounts{}
	}

	perDay := make(map[string]model.VerdictCounts, days)
	for _, row := range rows {
		summary.TotalRequests += row.TotalRequests

		bySource := summary.BySource[row.SourceType]
		bySource.Add(row.DailyStats)
		summary.BySource[row.SourceType] = bySource

		key := utcDay(row.Date).Format(time.DateOnly)
		dayCounts := perDay[key]
		dayCounts.Add(row.DailyStats)
		perDay[key] = dayCounts
	}

	var total model.VerdictCounts
	for _, c := range summary.BySource {
		total.Flagged += c.Flagged
		total.Clean += c.Clean
		total.Error += c.Error
	}
	summary.ByVerdict[model.VerdictFlagged] = total.Flagged
	summary.ByVerdict[model.VerdictClean] = total.Clean
	summary.ByVerdict[model.VerdictError] = total.Error

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		summary.DailyBreakdown = append(summary.DailyBreakdown, model.DailyBreakdown{Date: key, VerdictCounts: perDay[key]})
	}
	return summary, nil
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
