// Package core defines the ports of the moderation pipeline and the contracts between services and adapters.
package core

import (
	"context"
	"time"

	"github.com/target/mmk-moderation/internal/domain/model"
)

// JobQueue is the at-least-once transport between the dispatcher and the worker pool.
//
// A dequeued job is leased to the caller. If the caller neither acks nor requeues it
// before the lease expires, the job becomes visible to other workers again.
type JobQueue interface {
	Enqueue(ctx context.Context, job *model.Job) error
	// Dequeue blocks until a job of kind is available or ctx is done.
	Dequeue(ctx context.Context, kind model.Kind) (*model.Job, error)
	// Ack marks the job as having reached a terminal outcome.
	Ack(ctx context.Context, job *model.Job) error
	// Requeue makes the job visible again after delay. The caller has already
	// incremented job.AttemptCount.
	Requeue(ctx context.Context, job *model.Job, delay time.Duration) error
}

// JobQueueStats is implemented by queues that can report depth per kind.
type JobQueueStats interface {
	Stats(ctx context.Context, kind model.Kind) (*model.JobStats, error)
}
