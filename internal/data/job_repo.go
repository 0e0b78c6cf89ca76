package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// ErrJobNotFound is returned when a job is not found.
var ErrJobNotFound = errors.New("job not found")

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

// JobRepo provides the Postgres side of the job queue.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:     db,
		clock:  clock,
		logger: logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  type,
  status,
  payload,
  retry_count,
  max_retries,
  scheduled_at,
  started_at,
  completed_at,
  last_error,
  lease_expires_at,
  created_at,
  updated_at
`

// notifyChannel is the LISTEN/NOTIFY channel that announces new work of kind.
func notifyChannel(kind model.Kind) string {
	return "job_added_" + string(kind)
}

const reserveNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE type = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $2),
    lease_expires_at = $3,
    updated_at = $2
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.type, j.status, j.payload, j.retry_count, j.max_retries, j.scheduled_at,
            j.started_at, j.completed_at, j.last_error, j.lease_expires_at, j.created_at, j.updated_at`

// Create inserts job as pending and notifies listeners for its kind in the same transaction.
// Zero-valued ID, MaxAttempts, and ScheduledAt are filled in.
func (r *JobRepo) Create(ctx context.Context, job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	if !job.Kind.Valid() {
		return fmt.Errorf("invalid job kind: %s", job.Kind)
	}
	if len(job.Payload) == 0 {
		return errors.New("job payload is required")
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = model.DefaultMaxAttempts
	}
	now := r.clock.Now().UTC()
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}

	return pgxutil.InPgxTx(ctx, r.DB, "", func(tx pgx.Tx) error {
		args := []any{job.Kind, []byte(job.Payload), job.AttemptCount, job.MaxAttempts, job.ScheduledAt.UTC(), now}
		idExpr := "gen_random_uuid()"
		if job.ID != "" {
			idExpr = "$7::uuid"
			args = append(args, job.ID)
		}
		rows, err := tx.Query(ctx, `
			INSERT INTO jobs (id, type, status, payload, retry_count, max_retries, scheduled_at, created_at, updated_at)
			VALUES (`+idExpr+`, $1, 'pending', $2, $3, $4, $5, $6, $6)
			RETURNING `+jobColumns, args...)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect job: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannel(job.Kind), created.ID); err != nil {
			return fmt.Errorf("send job notification: %w", err)
		}
		*job = *created
		return nil
	})
}

// Advisory lock namespace for requeueExpired, one minor key per kind.
const advisoryLockRequeueMajor int64 = 1001

func advisoryLockRequeueMinor(kind model.Kind) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(kind))
	return int64(h.Sum32() & math.MaxInt32)
}

// requeueExpired returns jobs whose lease lapsed to pending. Only one caller per kind does the work.
func (r *JobRepo) requeueExpired(ctx context.Context, kind model.Kind) (int64, error) {
	var rowsAffected int64
	err := pgxutil.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
			advisoryLockRequeueMajor, advisoryLockRequeueMinor(kind)).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		now := r.clock.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending', lease_expires_at = NULL, updated_at = $3
			WHERE type = $1 AND status = 'running'
			  AND lease_expires_at IS NOT NULL
			  AND lease_expires_at < $2
		`, kind, now, now)
		if err != nil {
			return fmt.Errorf("requeue expired: %w", err)
		}
		rowsAffected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if rowsAffected > 0 {
		r.logger.WarnContext(ctx, "requeued jobs with expired leases", "kind", kind, "count", rowsAffected)
	}
	return rowsAffected, nil
}

// ReserveNext leases the oldest due pending job of kind. It returns model.ErrNoJobsAvailable when none is due.
func (r *JobRepo) ReserveNext(ctx context.Context, kind model.Kind, leaseSeconds int) (*model.Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid job kind: %s", kind)
	}
	if leaseSeconds <= 0 {
		return nil, errors.New("leaseSeconds must be positive")
	}
	if _, err := r.requeueExpired(ctx, kind); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.InPgxTx(ctx, r.DB, pgx.ReadCommitted, func(tx pgx.Tx) error {
		now := r.clock.Now().UTC()
		lease := now.Add(time.Duration(leaseSeconds) * time.Second)
		rows, err := tx.Query(ctx, reserveNextSQL, kind, now, lease)
		if err != nil {
			return fmt.Errorf("reserve job: %w", err)
		}
		j, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNoJobsAvailable
		}
		if err != nil {
			return fmt.Errorf("reserve job: %w", err)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Complete marks a running job as completed. It returns false if the job was not running.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	now := r.clock.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    completed_at = $2,
		    updated_at = $2,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return n > 0, nil
}

// Retry returns a running job to pending, scheduled Delay from now, recording the attempt count
// the worker computed. It returns false if the job was not running.
func (r *JobRepo) Retry(ctx context.Context, params core.RetryJobParams) (bool, error) {
	if params.Delay < 0 {
		return false, errors.New("retry delay must not be negative")
	}
	now := r.clock.Now().UTC()
	var lastErr *string
	if params.LastError != "" {
		lastErr = &params.LastError
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    retry_count = $2,
		    last_error = $3,
		    scheduled_at = $4,
		    lease_expires_at = NULL,
		    updated_at = $5
		WHERE id = $1 AND status = 'running'
	`, params.ID, params.AttemptCount, lastErr, now.Add(params.Delay), now)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retry rows affected: %w", err)
	}
	return n > 0, nil
}

// Stats returns job counts per status for kind.
func (r *JobRepo) Stats(ctx context.Context, kind model.Kind) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  count(*) FILTER (WHERE status = 'pending')   AS pending,
		  count(*) FILTER (WHERE status = 'running')   AS running,
		  count(*) FILTER (WHERE status = 'completed') AS completed
		FROM jobs
		WHERE type = $1
	`, kind).Scan(&s.Pending, &s.Running, &s.Completed)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks on LISTEN job_added_<kind> until a notification arrives or ctx ends.
func (r *JobRepo) WaitForNotification(ctx context.Context, kind model.Kind) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	channel := notifyChannel(kind)
	quoted := pgx.Identifier{channel}.Sanitize()
	if _, err := conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "UNLISTEN "+quoted)
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, err := sc.Conn().WaitForNotification(ctx)
		return err
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := pgxutil.QueryOne(ctx, r.DB, pgxutil.Query{
		SQL:  `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`,
		Args: []any{id},
	}, pgx.RowToAddrOfStructByName[model.Job])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

var _ core.JobRepository = (*JobRepo)(nil)
