package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/mocks"
	"github.com/target/mmk-moderation/internal/service"
	"go.uber.org/mock/gomock"
)

func newTestContainer(t *testing.T, withProcessor bool) *ServiceContainer {
	t.Helper()
	ctrl := gomock.NewController(t)

	agg, err := service.NewAggregatorService(service.AggregatorServiceOptions{
		Events:    mocks.NewMockEventRepository(ctrl),
		Analytics: mocks.NewMockAnalyticsRepository(ctrl),
	})
	require.NoError(t, err)
	reaper, err := service.NewReaperService(service.ReaperServiceOptions{Repo: mocks.NewMockReaperRepository(ctrl)})
	require.NoError(t, err)
	sched, err := service.NewSchedulerService(service.SchedulerServiceOptions{
		Runs:    mocks.NewMockScheduledRunRepository(ctrl),
		Rollup:  agg,
		Cleanup: reaper,
		Config:  config.SchedulerConfig{RollupHour: 1, CleanupHour: 2},
	})
	require.NoError(t, err)

	c := &ServiceContainer{
		Aggregator: agg,
		Reaper:     reaper,
		Scheduler:  sched,
		Queue:      mocks.NewMockJobQueue(ctrl),
	}
	if withProcessor {
		c.Processor, err = service.NewProcessor(service.ProcessorOptions{
			Stores: service.ProcessorStores{
				Results: mocks.NewMockTaskResultRepository(ctrl),
				Events:  mocks.NewMockEventRepository(ctrl),
			},
			Classifiers: service.ProcessorClassifiers{
				Text:  mocks.NewMockTextClassifier(ctrl),
				Image: mocks.NewMockImageClassifier(ctrl),
			},
		})
		require.NoError(t, err)
	}
	return c
}

func TestBuildBackgroundServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{name: "http only", services: "http", want: []string{"http"}},
		{name: "worker runs one runner per kind", services: "worker", want: []string{"text-worker", "image-worker"}},
		{name: "scheduler only", services: " scheduler ", want: []string{"scheduler"}},
		{
			name:     "all services",
			services: "http,worker,scheduler",
			want:     []string{"http", "text-worker", "image-worker", "scheduler"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Services: tt.services}
			cfg.Sanitize()

			got, err := buildBackgroundServices(&ServiceOrchestrationConfig{
				Config:   cfg,
				Services: newTestContainer(t, true),
			})
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, svc := range got {
				names = append(names, svc.name)
				assert.NotNil(t, svc.run)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestBuildBackgroundServices_WorkerNeedsProcessor(t *testing.T) {
	cfg := &config.AppConfig{Services: "worker"}
	cfg.Sanitize()

	_, err := buildBackgroundServices(&ServiceOrchestrationConfig{
		Config:   cfg,
		Services: newTestContainer(t, false),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor")
}

func TestBuildBackgroundServices_InvalidMode(t *testing.T) {
	cfg := &config.AppConfig{Services: "http,rules-engine"}

	_, err := buildBackgroundServices(&ServiceOrchestrationConfig{
		Config:   cfg,
		Services: newTestContainer(t, true),
	})
	require.Error(t, err)
}

func TestNewServices_RequiresDatabase(t *testing.T) {
	_, err := NewServices(&ServiceDeps{Config: &config.AppConfig{}})
	require.Error(t, err)
}
