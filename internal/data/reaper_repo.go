package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
)

// Advisory lock namespace for retention operations.
// Two-arg pg_try_advisory_xact_lock(major, minor); major 1000 is reserved for the reaper.
const (
	advisoryLockReaperMajor         = 1000
	advisoryLockReaperDeleteJobs    = 2
	advisoryLockReaperDeleteResults = 3
	advisoryLockReaperDeleteMetrics = 4
)

// ReaperRepo implements the batched retention deletes used by the weekly cleanup.
type ReaperRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewReaperRepo creates a ReaperRepo.
func NewReaperRepo(db *sql.DB, clock Clock) *ReaperRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReaperRepo{DB: db, clock: clock}
}

type lockedDelete struct {
	minor int
	query string
	args  []any
}

// deleteLocked runs d.query under the reaper advisory lock. A concurrent holder makes it a no-op.
func (r *ReaperRepo) deleteLocked(ctx context.Context, d lockedDelete) (int64, error) {
	var rowsAffected int64
	err := pgxutil.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			advisoryLockReaperMajor, d.minor).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}
		res, err := tx.ExecContext(ctx, d.query, d.args...)
		if err != nil {
			return err
		}
		rowsAffected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

func validateRetention(maxAge time.Duration, batchSize int) error {
	if batchSize <= 0 {
		return errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return errors.New("max age must be greater than zero")
	}
	return nil
}

// DeleteOldJobs deletes up to BatchSize jobs in Status whose last change is older than MaxAge.
func (r *ReaperRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid job status: %s", params.Status)
	}
	if err := validateRetention(params.MaxAge, params.BatchSize); err != nil {
		return 0, err
	}
	cutoff := r.clock.Now().Add(-params.MaxAge).UTC()
	n, err := r.deleteLocked(ctx, lockedDelete{
		minor: advisoryLockReaperDeleteJobs,
		query: `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = $1
				  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)`,
		args: []any{params.Status, cutoff, params.BatchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return n, nil
}

// DeleteTerminalResults deletes up to BatchSize terminal task results completed before MaxAge ago.
func (r *ReaperRepo) DeleteTerminalResults(ctx context.Context, params core.DeleteOlderThanParams) (int64, error) {
	if err := validateRetention(params.MaxAge, params.BatchSize); err != nil {
		return 0, err
	}
	cutoff := r.clock.Now().Add(-params.MaxAge).UTC()
	n, err := r.deleteLocked(ctx, lockedDelete{
		minor: advisoryLockReaperDeleteResults,
		query: `
			DELETE FROM task_results
			WHERE task_id IN (
				SELECT task_id FROM task_results
				WHERE status <> 'pending'
				  AND completed_at < $1
				ORDER BY completed_at
				LIMIT $2
			)`,
		args: []any{cutoff, params.BatchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("delete old task results: %w", err)
	}
	return n, nil
}

// DeleteOldMetrics deletes up to BatchSize system metric samples older than MaxAge.
func (r *ReaperRepo) DeleteOldMetrics(ctx context.Context, params core.DeleteOlderThanParams) (int64, error) {
	if err := validateRetention(params.MaxAge, params.BatchSize); err != nil {
		return 0, err
	}
	cutoff := r.clock.Now().Add(-params.MaxAge).UTC()
	n, err := r.deleteLocked(ctx, lockedDelete{
		minor: advisoryLockReaperDeleteMetrics,
		query: `
			DELETE FROM system_metrics
			WHERE id IN (
				SELECT id FROM system_metrics
				WHERE timestamp < $1
				ORDER BY timestamp
				LIMIT $2
			)`,
		args: []any{cutoff, params.BatchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("delete old metrics: %w", err)
	}
	return n, nil
}

var _ core.ReaperRepository = (*ReaperRepo)(nil)
