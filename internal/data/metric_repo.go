package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// MetricRepo persists system metric samples.
type MetricRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewMetricRepo creates a MetricRepo.
func NewMetricRepo(db *sql.DB, clock Clock) *MetricRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MetricRepo{DB: db, clock: clock}
}

// Record appends one sample. A zero Timestamp is stamped with the repository clock.
func (r *MetricRepo) Record(ctx context.Context, metric model.SystemMetric) error {
	if strings.TrimSpace(metric.Name) == "" {
		return ErrMetricNameRequired
	}
	tags, err := marshalNullable(metric.Tags)
	if err != nil {
		return fmt.Errorf("marshal metric tags: %w", err)
	}
	ts := metric.Timestamp
	if ts.IsZero() {
		ts = r.clock.Now()
	}
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO system_metrics (metric_name, value, unit, tags, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, metric.Name, metric.Value, metric.Unit, tags, ts.UTC()); err != nil {
		return fmt.Errorf("insert system metric: %w", err)
	}
	return nil
}

// History returns samples of name recorded at or after since, oldest first.
func (r *MetricRepo) History(ctx context.Context, name string, since time.Time) ([]model.SystemMetric, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrMetricNameRequired
	}
	rows, err := pgxutil.QueryAll(ctx, r.DB, pgxutil.Query{
		SQL: `
			SELECT id, metric_name, value, unit, tags, timestamp
			FROM system_metrics
			WHERE metric_name = $1 AND timestamp >= $2
			ORDER BY timestamp ASC, id ASC`,
		Args: []any{name, since.UTC()},
	}, pgx.RowToStructByName[model.SystemMetric])
	if err != nil {
		return nil, fmt.Errorf("query metric history: %w", err)
	}
	return rows, nil
}

var _ core.MetricRepository = (*MetricRepo)(nil)
