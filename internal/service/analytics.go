package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
)

// Metric history window bounds, in hours.
const (
	MinHistoryHours     = 1
	MaxHistoryHours     = 168
	DefaultHistoryHours = 24
)

// AnalyticsServiceOptions groups dependencies for AnalyticsService.
type AnalyticsServiceOptions struct {
	Metrics core.MetricRepository // Required
	Logger  *slog.Logger
	Now     func() time.Time
}

// AnalyticsService answers system metric history queries.
type AnalyticsService struct {
	metrics core.MetricRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(opts AnalyticsServiceOptions) (*AnalyticsService, error) {
	if opts.Metrics == nil {
		return nil, errors.New("MetricRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AnalyticsService{metrics: opts.Metrics, logger: logger.With("component", "analytics_service"), now: now}, nil
}

// MetricHistory returns the samples of name recorded in the last hours hours, oldest first.
func (s *AnalyticsService) MetricHistory(ctx context.Context, name string, hours int) (*model.MetricHistory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.ValidationField("metric_name", "metric name is required")
	}
	if hours < MinHistoryHours || hours > MaxHistoryHours {
		return nil, apperrors.ValidationField("hours", fmt.Sprintf("hours must be between %d and %d", MinHistoryHours, MaxHistoryHours))
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.metrics.History(ctx, name, since)
	if err != nil {
		return nil, fmt.Errorf("metric history: %w", err)
	}

	out := &model.MetricHistory{
		MetricName: name,
		Period:     fmt.Sprintf("Last %d hours", hours),
		Data:       make([]model.MetricPoint, 0, len(samples)),
	}
	for _, m := range samples {
		out.Data = append(out.Data, model.MetricPoint{Timestamp: m.Timestamp, Value: m.Value, Unit: m.Unit, Tags: m.Tags})
	}
	return out, nil
}
