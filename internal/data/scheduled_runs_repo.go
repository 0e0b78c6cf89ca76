package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/mmk-moderation/internal/core"
)

// ScheduledRunsRepo records which calendar period each scheduled task already fired for.
type ScheduledRunsRepo struct {
	DB *sql.DB
}

// NewScheduledRunsRepo creates a ScheduledRunsRepo.
func NewScheduledRunsRepo(db *sql.DB) *ScheduledRunsRepo {
	return &ScheduledRunsRepo{DB: db}
}

// Claim inserts (taskName, fireKey). It returns false when another caller already claimed it.
func (r *ScheduledRunsRepo) Claim(ctx context.Context, taskName, fireKey string, firedAt time.Time) (bool, error) {
	if strings.TrimSpace(taskName) == "" || strings.TrimSpace(fireKey) == "" {
		return false, errors.New("task name and fire key are required")
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO scheduled_runs (task_name, fire_key, fired_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_name, fire_key) DO NOTHING
	`, taskName, fireKey, firedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("claim scheduled run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// Release removes a claim so the period can fire again.
func (r *ScheduledRunsRepo) Release(ctx context.Context, taskName, fireKey string) error {
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM scheduled_runs WHERE task_name = $1 AND fire_key = $2`, taskName, fireKey,
	); err != nil {
		return fmt.Errorf("release scheduled run: %w", err)
	}
	return nil
}

var _ core.ScheduledRunRepository = (*ScheduledRunsRepo)(nil)
