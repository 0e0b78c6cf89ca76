// Package queue provides the core.JobQueue backends: the Postgres jobs table and Redis lists.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/job"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// ErrJobRequired is returned when Ack or Requeue is called with a nil job.
var ErrJobRequired = errors.New("job is required")

// PostgresOptions configures a PostgresQueue.
type PostgresOptions struct {
	Repo core.JobRepository
	// Notifier defaults to a job.DefaultNotifier listening on Repo.
	Notifier job.Notifier
	// Lease defaults to 5 minutes.
	Lease time.Duration
	// PollInterval bounds idle waits so delayed retries, which send no NOTIFY, are picked up.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// PostgresQueue is a core.JobQueue over the jobs table.
type PostgresQueue struct {
	repo     core.JobRepository
	notifier job.Notifier
	owned    bool
	lease    *job.LeasePolicy
	poll     time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	wakeup map[model.Kind]<-chan struct{}
	unsubs []func()
}

// NewPostgresQueue constructs a PostgresQueue.
func NewPostgresQueue(opts PostgresOptions) (*PostgresQueue, error) {
	if opts.Repo == nil {
		return nil, errors.New("job repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	lease, err := job.NewLeasePolicy(opts.Lease)
	if err != nil {
		return nil, err
	}
	notifier, owned := opts.Notifier, false
	if notifier == nil {
		n, nerr := job.NewNotifier(job.NotifierOptions{Waiter: opts.Repo, Logger: logger})
		if nerr != nil {
			return nil, nerr
		}
		notifier, owned = n, true
	}
	return &PostgresQueue{
		repo:     opts.Repo,
		notifier: notifier,
		owned:    owned,
		lease:    lease,
		poll:     opts.PollInterval,
		logger:   logger.With("component", "pg_queue"),
		wakeup:   make(map[model.Kind]<-chan struct{}),
	}, nil
}

// Enqueue inserts the job; the insert notifies listeners for its kind.
func (q *PostgresQueue) Enqueue(ctx context.Context, j *model.Job) error {
	if j == nil {
		return ErrJobRequired
	}
	if err := q.repo.Create(ctx, j); err != nil {
		return fmt.Errorf("enqueue %s job: %w", j.Kind, err)
	}
	return nil
}

// Dequeue leases the oldest due job of kind, waiting for a notification or the poll interval between attempts.
func (q *PostgresQueue) Dequeue(ctx context.Context, kind model.Kind) (*model.Job, error) {
	wake := q.subscribe(kind)
	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	for {
		j, err := q.repo.ReserveNext(ctx, kind, q.lease.Seconds(0))
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, fmt.Errorf("reserve %s job: %w", kind, err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.poll)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		case <-timer.C:
		}
	}
}

// subscribe returns the shared wake-up channel for kind, creating the subscription on first use.
func (q *PostgresQueue) subscribe(kind model.Kind) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.wakeup[kind]; ok {
		return ch
	}
	unsub, ch := q.notifier.Subscribe(kind)
	q.wakeup[kind] = ch
	q.unsubs = append(q.unsubs, unsub)
	return ch
}

// Ack marks the job completed. A job whose lease was lost is logged and not an error.
func (q *PostgresQueue) Ack(ctx context.Context, j *model.Job) error {
	if j == nil {
		return ErrJobRequired
	}
	ok, err := q.repo.Complete(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("ack job %s: %w", j.ID, err)
	}
	if !ok {
		q.logger.WarnContext(ctx, "ack found job no longer running", "job_id", j.ID, "kind", j.Kind)
	}
	return nil
}

// Requeue returns the job to pending, visible again after delay.
func (q *PostgresQueue) Requeue(ctx context.Context, j *model.Job, delay time.Duration) error {
	if j == nil {
		return ErrJobRequired
	}
	params := core.RetryJobParams{ID: j.ID, AttemptCount: j.AttemptCount, Delay: delay}
	if j.LastError != nil {
		params.LastError = *j.LastError
	}
	ok, err := q.repo.Retry(ctx, params)
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", j.ID, err)
	}
	if !ok {
		q.logger.WarnContext(ctx, "requeue found job no longer running", "job_id", j.ID, "kind", j.Kind)
	}
	return nil
}

// Stats reports job counts per status for kind.
func (q *PostgresQueue) Stats(ctx context.Context, kind model.Kind) (*model.JobStats, error) {
	return q.repo.Stats(ctx, kind)
}

// Close releases the notification subscriptions and stops a notifier the queue created.
func (q *PostgresQueue) Close() {
	q.mu.Lock()
	unsubs := q.unsubs
	q.unsubs = nil
	q.wakeup = make(map[model.Kind]<-chan struct{})
	q.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
	if q.owned {
		q.notifier.StopAll()
	}
}

var (
	_ core.JobQueue      = (*PostgresQueue)(nil)
	_ core.JobQueueStats = (*PostgresQueue)(nil)
)
