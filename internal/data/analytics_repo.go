package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// AnalyticsRepo persists daily rollups.
type AnalyticsRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewAnalyticsRepo creates an AnalyticsRepo.
func NewAnalyticsRepo(db *sql.DB, clock Clock) *AnalyticsRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AnalyticsRepo{DB: db, clock: clock}
}

// UpsertDaily writes row, overwriting every counter of an existing (date, source_type) row.
func (r *AnalyticsRepo) UpsertDaily(ctx context.Context, row model.DailyAnalytics) error {
	if !row.SourceType.Valid() {
		return fmt.Errorf("invalid source type: %s", row.SourceType)
	}
	if row.Date.IsZero() {
		return errors.New("rollup date is required")
	}
	now := r.clock.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO daily_analytics
		  (date, source_type, total_requests, flagged_count, clean_count, error_count,
		   avg_processing_time, total_file_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (date, source_type) DO UPDATE
		SET total_requests      = EXCLUDED.total_requests,
		    flagged_count       = EXCLUDED.flagged_count,
		    clean_count         = EXCLUDED.clean_count,
		    error_count         = EXCLUDED.error_count,
		    avg_processing_time = EXCLUDED.avg_processing_time,
		    total_file_size     = EXCLUDED.total_file_size,
		    updated_at          = EXCLUDED.updated_at
	`, truncateDay(row.Date).Format(time.DateOnly), row.SourceType,
		row.TotalRequests, row.FlaggedCount, row.CleanCount, row.ErrorCount,
		row.AvgProcessingTime, row.TotalFileSize, now)
	if err != nil {
		return fmt.Errorf("upsert daily analytics: %w", err)
	}
	return nil
}

// ListRange returns rollup rows with from <= date <= to, ordered by date then source type.
func (r *AnalyticsRepo) ListRange(ctx context.Context, from, to time.Time) ([]model.DailyAnalytics, error) {
	rows, err := pgxutil.QueryAll(ctx, r.DB, pgxutil.Query{
		SQL: `
			SELECT date, source_type, total_requests, flagged_count, clean_count, error_count,
			       avg_processing_time, total_file_size, created_at, updated_at
			FROM daily_analytics
			WHERE date BETWEEN $1::date AND $2::date
			ORDER BY date, source_type`,
		Args: []any{truncateDay(from).Format(time.DateOnly), truncateDay(to).Format(time.DateOnly)},
	}, pgx.RowToStructByName[model.DailyAnalytics])
	if err != nil {
		return nil, fmt.Errorf("list daily analytics: %w", err)
	}
	return rows, nil
}

var _ core.AnalyticsRepository = (*AnalyticsRepo)(nil)
