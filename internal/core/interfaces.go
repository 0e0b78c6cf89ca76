package core

import (
	"context"
	"time"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// Repository contracts between the service layer and the data layer.

// JobRepository defines the Postgres job table operations used by the queue backend and the reaper.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, kind model.Kind, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, kind model.Kind) error
	Complete(ctx context.Context, id string) (bool, error)
	Retry(ctx context.Context, params RetryJobParams) (bool, error)
	Stats(ctx context.Context, kind model.Kind) (*model.JobStats, error)
}

// RetryJobParams groups parameters for JobRepository.Retry.
type RetryJobParams struct {
	ID           string
	AttemptCount int
	Delay        time.Duration
	LastError    string
}

// TaskResultRepository persists pollable task results.
type TaskResultRepository interface {
	// CreatePending inserts a pending result for a freshly submitted task.
	CreatePending(ctx context.Context, result *model.TaskResult) error
	GetByID(ctx context.Context, taskID string) (*model.TaskResult, error)
	// Complete moves a pending result to a terminal status.
	// It returns false when the result was already terminal or does not exist.
	Complete(ctx context.Context, params model.CompleteTaskParams) (bool, error)
}

// EventRepository persists terminal moderation outcomes.
type EventRepository interface {
	// Record writes the event (and image analysis when present). A second write for the same
	// task is a no-op and reports false.
	Record(ctx context.Context, req model.RecordEventRequest) (bool, error)
	// GetByTaskID returns the event recorded for a task, or model.ErrEventNotFound.
	GetByTaskID(ctx context.Context, taskID string) (*model.ModerationEvent, error)
	// DailyStats aggregates one UTC day of events for one source kind.
	DailyStats(ctx context.Context, day time.Time, kind model.Kind) (model.DailyStats, error)
}

// AnalyticsRepository persists daily rollups.
type AnalyticsRepository interface {
	UpsertDaily(ctx context.Context, row model.DailyAnalytics) error
	// ListRange returns rollup rows with from <= date <= to ordered by date.
	ListRange(ctx context.Context, from, to time.Time) ([]model.DailyAnalytics, error)
}

// MetricRepository persists system metric samples.
type MetricRepository interface {
	Record(ctx context.Context, metric model.SystemMetric) error
	History(ctx context.Context, name string, since time.Time) ([]model.SystemMetric, error)
}

// ScheduledRunRepository records which calendar periods each scheduled task already fired for.
type ScheduledRunRepository interface {
	Claim(ctx context.Context, taskName, fireKey string, firedAt time.Time) (bool, error)
	Release(ctx context.Context, taskName, fireKey string) error
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// DeleteOlderThanParams groups parameters for the batched retention deletes.
type DeleteOlderThanParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the retention operations run by the weekly cleanup.
type ReaperRepository interface {
	// DeleteOldJobs deletes jobs with the given status older than MaxAge, at most BatchSize per call.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
	// DeleteTerminalResults deletes terminal task results completed before MaxAge ago.
	// Pending results are never deleted.
	DeleteTerminalResults(ctx context.Context, params DeleteOlderThanParams) (int64, error)
	// DeleteOldMetrics deletes system metric samples older than MaxAge.
	DeleteOldMetrics(ctx context.Context, params DeleteOlderThanParams) (int64, error)
}
