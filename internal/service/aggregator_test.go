package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"github.com/target/mmk-moderation/internal/mocks"
	"github.com/target/mmk-moderation/internal/observability/statsd"
	"go.uber.org/mock/gomock"
)

// memAnalytics is an in-memory AnalyticsRepository keyed like the real table.
type memAnalytics struct {
	mu   sync.Mutex
	rows map[string]model.DailyAnalytics
}

func newMemAnalytics() *memAnalytics {
	return &memAnalytics{rows: make(map[string]model.DailyAnalytics)}
}

func (m *memAnalytics) UpsertDaily(_ context.Context, row model.DailyAnalytics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.Date.Format(time.DateOnly)+"/"+string(row.SourceType)] = row
	return nil
}

func (m *memAnalytics) ListRange(_ context.Context, from, to time.Time) ([]model.DailyAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DailyAnalytics
	for _, r := range m.rows {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAnalytics) get(day, kind string) model.DailyAnalytics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[day+"/"+kind]
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestAggregatorService_RollupCountsPerKind(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventRepository(ctrl)
	analytics := newMemAnalytics()
	svc, err := NewAggregatorService(AggregatorServiceOptions{Events: events, Analytics: analytics})
	require.NoError(t, err)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	avg := 300.0
	events.EXPECT().DailyStats(gomock.Any(), day, model.KindText).
		Return(model.DailyStats{TotalRequests: 5, FlaggedCount: 2, CleanCount: 3, AvgProcessingTime: &avg}, nil).Times(2)
	events.EXPECT().DailyStats(gomock.Any(), day, model.KindImage).
		Return(model.DailyStats{}, nil).Times(2)

	_, err = svc.Rollup(context.Background(), day.Add(13*time.Hour))
	require.NoError(t, err)
	first := analytics.get("2024-01-01", "text")

	_, err = svc.Rollup(context.Background(), day)
	require.NoError(t, err)
	second := analytics.get("2024-01-01", "text")

	assert.Equal(t, first, second, "rollup must be idempotent")
	assert.Equal(t, model.DailyStats{TotalRequests: 5, FlaggedCount: 2, CleanCount: 3, ErrorCount: 0, AvgProcessingTime: &avg}, second.DailyStats)

	image := analytics.get("2024-01-01", "image")
	assert.Equal(t, 0, image.TotalRequests)
	assert.Equal(t, 0, image.FlaggedCount)
	assert.Equal(t, 0, image.CleanCount)
	assert.Equal(t, 0, image.ErrorCount)
	require.NotNil(t, image.TotalFileSize)
	assert.Zero(t, *image.TotalFileSize)
}

func TestAggregatorService_RollupPropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventRepository(ctrl)
	analytics := mocks.NewMockAnalyticsRepository(ctrl)
	svc, err := NewAggregatorService(AggregatorServiceOptions{Events: events, Analytics: analytics})
	require.NoError(t, err)

	events.EXPECT().DailyStats(gomock.Any(), gomock.Any(), model.KindText).Return(model.DailyStats{}, errors.New("db down"))
	events.EXPECT().DailyStats(gomock.Any(), gomock.Any(), model.KindImage).Return(model.DailyStats{}, nil).AnyTimes()
	analytics.EXPECT().UpsertDaily(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	_, err = svc.Rollup(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestAggregatorService_RollupRecentCoversYesterdayAndToday(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventRepository(ctrl)
	metricsRepo := mocks.NewMockMetricRepository(ctrl)
	analytics := newMemAnalytics()
	sink := &statsd.MemorySink{}
	fire := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	svc, err := NewAggregatorService(AggregatorServiceOptions{
		Events: events, Analytics: analytics, Metrics: metricsRepo, Sink: sink, Now: fixedNow(fire),
	})
	require.NoError(t, err)

	events.EXPECT().DailyStats(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.DailyStats{TotalRequests: 1, CleanCount: 1}, nil).Times(4)
	metricsRepo.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m model.SystemMetric) error {
		assert.Equal(t, MetricRollupDuration, m.Name)
		return nil
	})

	require.NoError(t, svc.RollupRecent(context.Background(), fire))

	assert.Equal(t, 1, analytics.get("2024-03-09", "text").TotalRequests)
	assert.Equal(t, 1, analytics.get("2024-03-10", "image").TotalRequests)
	runs := sink.Named("analytics.rollup.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Tags["result"])
}

func TestAggregatorService_Summary(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventRepository(ctrl)
	analytics := newMemAnalytics()
	now := time.Date(2024, 1, 7, 15, 0, 0, 0, time.UTC)
	svc, err := NewAggregatorService(AggregatorServiceOptions{Events: events, Analytics: analytics, Now: fixedNow(now)})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, analytics.UpsertDaily(ctx, model.DailyAnalytics{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), SourceType: model.KindText,
		DailyStats: model.DailyStats{TotalRequests: 5, FlaggedCount: 2, CleanCount: 3},
	}))
	require.NoError(t, analytics.UpsertDaily(ctx, model.DailyAnalytics{
		Date: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), SourceType: model.KindImage,
		DailyStats: model.DailyStats{TotalRequests: 2, FlaggedCount: 1, ErrorCount: 1},
	}))
	require.NoError(t, analytics.UpsertDaily(ctx, model.DailyAnalytics{
		Date: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), SourceType: model.KindText,
		DailyStats: model.DailyStats{TotalRequests: 100, CleanCount: 100},
	}))

	summary, err := svc.Summary(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, "Last 7 days", summary.Period)
	assert.Equal(t, 7, summary.TotalRequests)
	assert.Equal(t, model.VerdictCounts{TotalRequests: 5, Flagged: 2, Clean: 3}, summary.BySource[model.KindText])
	assert.Equal(t, model.VerdictCounts{TotalRequests: 2, Flagged: 1, Error: 1}, summary.BySource[model.KindImage])
	assert.Equal(t, map[model.Verdict]int{"flagged": 3, "clean": 3, "error": 1}, summary.ByVerdict)

	require.Len(t, summary.DailyBreakdown, 7)
	assert.Equal(t, "2024-01-01", summary.DailyBreakdown[0].Date)
	assert.Equal(t, 5, summary.DailyBreakdown[0].TotalRequests)
	assert.Equal(t, "2024-01-03", summary.DailyBreakdown[2].Date)
	assert.Zero(t, summary.DailyBreakdown[2].TotalRequests)
	assert.Equal(t, "2024-01-07", summary.DailyBreakdown[6].Date)
	assert.Equal(t, 2, summary.DailyBreakdown[6].TotalRequests)
}

func TestAggregatorService_SummaryRejectsOutOfRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, err := NewAggregatorService(AggregatorServiceOptions{
		Events: mocks.NewMockEventRepository(ctrl), Analytics: newMemAnalytics(),
	})
	require.NoError(t, err)

	for _, days := range []int{0, 31, -1} {
		_, err := svc.Summary(context.Background(), days)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err), "days=%d", days)
	}
}
