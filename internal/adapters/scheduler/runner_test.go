package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainscheduler "github.com/target/mmk-moderation/internal/domain/scheduler"
	"github.com/target/mmk-moderation/internal/observability/statsd"
)

type fakeTicker struct {
	mu    sync.Mutex
	times []time.Time
	err   error
	tick  chan struct{}
}

func (f *fakeTicker) Tick(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	f.times = append(f.times, now)
	err := f.err
	f.mu.Unlock()
	select {
	case f.tick <- struct{}{}:
	default:
	}
	return 1, err
}

func (f *fakeTicker) Tasks() []domainscheduler.Trigger {
	return []domainscheduler.Trigger{
		domainscheduler.Daily("daily-rollup", 1),
		domainscheduler.Weekly("weekly-cleanup", time.Sunday, 2),
	}
}

func (f *fakeTicker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.times)
}

func TestNewRunner_RequiresScheduler(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_TicksImmediatelyAndOnInterval(t *testing.T) {
	ft := &fakeTicker{tick: make(chan struct{}, 8)}
	sink := &statsd.MemorySink{}
	r, err := NewRunner(RunnerOptions{Scheduler: ft, Interval: 10 * time.Millisecond, Metrics: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for range 3 {
		select {
		case <-ft.tick:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler was not ticked")
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, ft.count(), 3)
	assert.NotEmpty(t, sink.Named("scheduler.last_success_epoch"))
	for _, ts := range ft.times {
		assert.Equal(t, time.UTC, ts.Location())
	}
}

func TestRunner_KeepsRunningAfterTickError(t *testing.T) {
	ft := &fakeTicker{tick: make(chan struct{}, 8), err: errors.New("db down")}
	sink := &statsd.MemorySink{}
	r, err := NewRunner(RunnerOptions{Scheduler: ft, Interval: 5 * time.Millisecond, Metrics: sink})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for range 2 {
		select {
		case <-ft.tick:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler was not ticked")
		}
	}
	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, sink.Named("scheduler.last_success_epoch"))
}

func TestRunner_ReportsNextFireTimes(t *testing.T) {
	ft := &fakeTicker{tick: make(chan struct{}, 8)}
	sink := &statsd.MemorySink{}
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // Wednesday
	r, err := NewRunner(RunnerOptions{
		Scheduler: ft,
		Interval:  time.Hour,
		Metrics:   sink,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.Named("scheduler.next_fire_epoch")) == 2 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	next := map[string]float64{}
	for _, s := range sink.Named("scheduler.next_fire_epoch") {
		next[s.Tags["task"]] = s.Value
	}
	assert.InDelta(t, float64(time.Date(2024, 3, 7, 1, 0, 0, 0, time.UTC).Unix()), next["daily-rollup"], 0)
	assert.InDelta(t, float64(time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC).Unix()), next["weekly-cleanup"], 0)
}
