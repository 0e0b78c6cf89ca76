// Package mocks provides gomock doubles for the core ports of the moderation pipeline.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockTaskResultRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), id).Return(result, nil)
package mocks

// JobRepository: Create, GetByID, ReserveNext, WaitForNotification, Complete, Retry, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/mmk-moderation/internal/core JobRepository

// TaskResultRepository: CreatePending, GetByID, Complete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=task_result_repository_mock.go github.com/target/mmk-moderation/internal/core TaskResultRepository

// EventRepository: Record, GetByTaskID, DailyStats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=event_repository_mock.go github.com/target/mmk-moderation/internal/core EventRepository

// AnalyticsRepository: UpsertDaily, ListRange
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analytics_repository_mock.go github.com/target/mmk-moderation/internal/core AnalyticsRepository

// MetricRepository: Record, History
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=metric_repository_mock.go github.com/target/mmk-moderation/internal/core MetricRepository

// ScheduledRunRepository: Claim, Release
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scheduled_run_repository_mock.go github.com/target/mmk-moderation/internal/core ScheduledRunRepository

// ReaperRepository: DeleteOldJobs, DeleteTerminalResults, DeleteOldMetrics
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/mmk-moderation/internal/core ReaperRepository

// CacheRepository: Set, Get, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/mmk-moderation/internal/core CacheRepository

// JobQueue: Enqueue, Dequeue, Ack, Requeue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_queue_mock.go github.com/target/mmk-moderation/internal/core JobQueue

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=text_classifier_mock.go github.com/target/mmk-moderation/internal/core TextClassifier

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=image_classifier_mock.go github.com/target/mmk-moderation/internal/core ImageClassifier

// FileStore: Save, Remove, PruneOlderThan
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=file_store_mock.go github.com/target/mmk-moderation/internal/core FileStore
