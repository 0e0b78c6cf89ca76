package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/mocks"
	"github.com/target/mmk-moderation/internal/observability/statsd"
	"go.uber.org/mock/gomock"
)

type memRuns struct {
	mu     sync.Mutex
	claims map[string]bool
}

func (m *memRuns) Claim(_ context.Context, name, key string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims == nil {
		m.claims = map[string]bool{}
	}
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memRuns) Release(_ context.Context, _, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

type recordingRollup struct {
	fires []time.Time
	err   error
}

func (r *recordingRollup) RollupRecent(_ context.Context, fire time.Time) error {
	r.fires = append(r.fires, fire)
	return r.err
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) RunCleanup(context.Context) (CleanupReport, error) {
	c.calls++
	return CleanupReport{}, nil
}

func defaultSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{Interval: 30 * time.Second, RollupHour: 1, CleanupWeekday: 0, CleanupHour: 2}
}

func TestSchedulerService_FiresEachPeriodOnce(t *testing.T) {
	runs := &memRuns{}
	rollup := &recordingRollup{}
	cleaner := &countingCleaner{}
	sink := &statsd.MemorySink{}
	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runs: runs, Rollup: rollup, Cleanup: cleaner, Config: defaultSchedulerConfig(), Metrics: sink,
	})
	require.NoError(t, err)
	ctx := context.Background()

	// Sunday 2024-01-07 02:30 UTC: both periods are due.
	now := time.Date(2024, 1, 7, 2, 30, 0, 0, time.UTC)
	ran, err := svc.Tick(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	// Second replica ticking in the same period does nothing.
	ran, err = svc.Tick(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, ran)

	// Next day: only the rollup.
	ran, err = svc.Tick(ctx, time.Date(2024, 1, 8, 1, 0, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, ran)

	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 7, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC),
	}, rollup.fires)
	assert.Equal(t, 1, cleaner.calls)

	ticks := sink.Named("scheduler.tick.run")
	require.Len(t, ticks, 3)
	assert.Equal(t, "noop", ticks[1].Tags["result"])
}

func TestSchedulerService_FailedTaskIsRetriedNextTick(t *testing.T) {
	runs := &memRuns{}
	rollup := &recordingRollup{err: errors.New("db down")}
	cleaner := &countingCleaner{}
	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runs: runs, Rollup: rollup, Cleanup: cleaner, Config: defaultSchedulerConfig(),
	})
	require.NoError(t, err)

	now := time.Date(2024, 1, 7, 2, 30, 0, 0, time.UTC)
	ran, err := svc.Tick(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, 1, ran, "cleanup still runs")

	rollup.err = nil
	ran, err = svc.Tick(context.Background(), now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Len(t, rollup.fires, 2)
	assert.Equal(t, 1, cleaner.calls)
}

func TestSchedulerService_ClaimsThroughRepository(t *testing.T) {
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockScheduledRunRepository(ctrl)
	rollup := &recordingRollup{}
	cleaner := &countingCleaner{}
	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runs: runs, Rollup: rollup, Cleanup: cleaner, Config: defaultSchedulerConfig(),
	})
	require.NoError(t, err)

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	runs.EXPECT().Claim(gomock.Any(), TaskDailyRollup, "daily-rollup:2024-01-10T01:00:00Z", now).Return(true, nil)
	runs.EXPECT().Claim(gomock.Any(), TaskWeeklyCleanup, "weekly-cleanup:2024-01-07T02:00:00Z", now).Return(false, nil)

	ran, err := svc.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Zero(t, cleaner.calls)
}

func TestNewSchedulerService_Validation(t *testing.T) {
	_, err := NewSchedulerService(SchedulerServiceOptions{Runs: &memRuns{}, Cleanup: &countingCleaner{}})
	require.Error(t, err)

	_, err = NewSchedulerService(SchedulerServiceOptions{Rollup: &recordingRollup{}, Cleanup: &countingCleaner{}})
	require.Error(t, err)

	cfg := defaultSchedulerConfig()
	cfg.RollupHour = 24
	_, err = NewSchedulerService(SchedulerServiceOptions{Runs: &memRuns{}, Rollup: &recordingRollup{}, Cleanup: &countingCleaner{}, Config: cfg})
	require.Error(t, err)

	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runs: &memRuns{}, Rollup: &recordingRollup{}, Cleanup: &countingCleaner{}, Config: defaultSchedulerConfig(),
	})
	require.NoError(t, err)
	names := []string{}
	for _, tr := range svc.Tasks() {
		names = append(names, tr.Name)
	}
	assert.Equal(t, []string{TaskDailyRollup, TaskWeeklyCleanup}, names)
}
