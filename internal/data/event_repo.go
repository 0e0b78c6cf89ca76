package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// EventRepo persists moderation events and their image analysis.
type EventRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewEventRepo creates an EventRepo.
func NewEventRepo(db *sql.DB, clock Clock) *EventRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &EventRepo{DB: db, clock: clock}
}

// Record writes one event per task. The image analysis row, when present, is written in the
// same transaction. A redelivered task hits ON CONFLICT and Record returns false.
func (r *EventRepo) Record(ctx context.Context, req model.RecordEventRequest) (bool, error) {
	if req.TaskID == "" {
		return false, ErrTaskIDRequired
	}
	if !req.Source.Valid() {
		return false, fmt.Errorf("invalid source: %s", req.Source)
	}
	if !req.Verdict.Valid() {
		return false, fmt.Errorf("invalid verdict: %s", req.Verdict)
	}

	scores, err := marshalNullable(req.Scores)
	if err != nil {
		return false, fmt.Errorf("marshal scores: %w", err)
	}
	if scores == nil {
		scores = []byte(`{}`)
	}

	var filePath, fileType *string
	var fileSize *int64
	var dims []byte
	if req.File != nil {
		filePath, fileType, fileSize = &req.File.FilePath, &req.File.FileType, &req.File.FileSize
		if dims, err = marshalNullable(req.File.Dimensions); err != nil {
			return false, fmt.Errorf("marshal dimensions: %w", err)
		}
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.clock.Now()
	}

	inserted := false
	err = pgxutil.InPgxTx(ctx, r.DB, "", func(tx pgx.Tx) error {
		var eventID int64
		scanErr := tx.QueryRow(ctx, `
			INSERT INTO moderation_events
			  (task_id, source, item_id, verdict, scores, file_path, file_size, file_type, image_dimensions, processing_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (task_id) DO NOTHING
			RETURNING id
		`, req.TaskID, string(req.Source), req.ItemID, string(req.Verdict), scores,
			filePath, fileSize, fileType, dims, req.ProcessingMs, occurredAt.UTC(),
		).Scan(&eventID)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return fmt.Errorf("insert moderation event: %w", scanErr)
		}
		inserted = true
		if req.Analysis == nil {
			return nil
		}
		return insertImageAnalysis(ctx, tx, eventID, req)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func insertImageAnalysis(ctx context.Context, tx pgx.Tx, eventID int64, req model.RecordEventRequest) error {
	nsfw, err := marshalNullable(req.Analysis.NSFWScores)
	if err != nil {
		return fmt.Errorf("marshal nsfw scores: %w", err)
	}
	if nsfw == nil {
		nsfw = []byte(`{}`)
	}
	var objects []byte
	if len(req.Analysis.DetectedObjects) > 0 {
		objects = req.Analysis.DetectedObjects
	}
	var textInImage, imageHash *string
	if req.Analysis.ExtractedText != "" {
		textInImage = &req.Analysis.ExtractedText
	}
	if req.File != nil && req.File.FileHash != "" {
		imageHash = &req.File.FileHash
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO image_analysis (moderation_event_id, detected_objects, nsfw_scores, text_in_image, image_hash, processing_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, eventID, objects, nsfw, textInImage, imageHash, req.ProcessingMs); err != nil {
		return fmt.Errorf("insert image analysis: %w", err)
	}
	return nil
}

// GetByTaskID returns the event recorded for taskID.
func (r *EventRepo) GetByTaskID(ctx context.Context, taskID string) (*model.ModerationEvent, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, model.ErrEventNotFound
	}
	ev, err := pgxutil.QueryOne(ctx, r.DB, pgxutil.Query{
		SQL: `
			SELECT id, task_id, source, item_id, verdict, scores, file_path, file_size,
			       file_type, image_dimensions, processing_ms, created_at
			FROM moderation_events
			WHERE task_id = $1
		`,
		Args: []any{taskID},
	}, pgx.RowToAddrOfStructByName[model.ModerationEvent])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get moderation event: %w", err)
	}
	return ev, nil
}

// DailyStats aggregates the events of kind created on the UTC day containing day.
func (r *EventRepo) DailyStats(ctx context.Context, day time.Time, kind model.Kind) (model.DailyStats, error) {
	start := truncateDay(day)
	end := start.AddDate(0, 0, 1)

	var s model.DailyStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  count(*)                                   AS total_requests,
		  count(*) FILTER (WHERE verdict = 'flagged') AS flagged_count,
		  count(*) FILTER (WHERE verdict = 'clean')   AS clean_count,
		  count(*) FILTER (WHERE verdict = 'error')   AS error_count,
		  avg(processing_ms)::double precision        AS avg_processing_time,
		  sum(file_size)::bigint                      AS total_file_size
		FROM moderation_events
		WHERE source = $1 AND created_at >= $2 AND created_at < $3
	`, kind, start, end).Scan(
		&s.TotalRequests,
		&s.FlaggedCount,
		&s.CleanCount,
		&s.ErrorCount,
		&s.AvgProcessingTime,
		&s.TotalFileSize,
	)
	if err != nil {
		return model.DailyStats{}, fmt.Errorf("aggregate daily stats: %w", err)
	}
	return s, nil
}

// truncateDay returns midnight UTC of t's UTC date.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ core.EventRepository = (*EventRepo)(nil)
