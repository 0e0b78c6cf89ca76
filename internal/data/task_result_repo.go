package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/data/pgxutil"
	"github.com/target/mmk-moderation/internal/domain/model"
)

const taskResultColumns = `
  task_id,
  kind,
  source_id,
  status,
  verdict,
  scores,
  analysis,
  file_info,
  error,
  attempts,
  created_at,
  completed_at
`

// TaskResultRepo persists pollable task results.
type TaskResultRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewTaskResultRepo creates a TaskResultRepo.
func NewTaskResultRepo(db *sql.DB, clock Clock) *TaskResultRepo {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TaskResultRepo{DB: db, clock: clock}
}

// CreatePending inserts result with status pending. CreatedAt is set from the repository clock.
func (r *TaskResultRepo) CreatePending(ctx context.Context, result *model.TaskResult) error {
	if result == nil {
		return errors.New("task result is required")
	}
	if result.TaskID == "" {
		return ErrTaskIDRequired
	}
	if !result.Kind.Valid() {
		return fmt.Errorf("invalid kind: %s", result.Kind)
	}
	fileInfo, err := marshalNullable(result.FileInfo)
	if err != nil {
		return fmt.Errorf("marshal file info: %w", err)
	}

	now := r.clock.Now().UTC()
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO task_results (task_id, kind, source_id, status, file_info, attempts, created_at)
		VALUES ($1, $2, $3, 'pending', $4, 0, $5)
	`, result.TaskID, result.Kind, result.SourceID, fileInfo, now); err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}
	result.Status = model.TaskStatusPending
	result.CreatedAt = now
	return nil
}

// GetByID returns the result for taskID. Unknown or malformed ids yield ErrTaskResultNotFound.
func (r *TaskResultRepo) GetByID(ctx context.Context, taskID string) (*model.TaskResult, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, ErrTaskResultNotFound
	}
	res, err := pgxutil.QueryOne(ctx, r.DB, pgxutil.Query{
		SQL:  `SELECT ` + taskResultColumns + ` FROM task_results WHERE task_id = $1`,
		Args: []any{taskID},
	}, pgx.RowToAddrOfStructByName[model.TaskResult])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task result: %w", err)
	}
	return res, nil
}

// Complete moves a pending result to a terminal status. The update is guarded on status = 'pending',
// so a terminal row is never overwritten; in that case Complete returns false.
func (r *TaskResultRepo) Complete(ctx context.Context, params model.CompleteTaskParams) (bool, error) {
	if err := params.Validate(); err != nil {
		return false, err
	}
	scores, err := marshalNullable(params.Scores)
	if err != nil {
		return false, fmt.Errorf("marshal scores: %w", err)
	}
	analysis, err := marshalNullable(params.Analysis)
	if err != nil {
		return false, fmt.Errorf("marshal analysis: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE task_results
		SET status = $2,
		    verdict = $3,
		    scores = $4,
		    analysis = $5,
		    error = $6,
		    attempts = $7,
		    completed_at = $8
		WHERE task_id = $1 AND status = 'pending'
	`, params.TaskID, params.Status, params.Verdict, scores, analysis, params.Error, params.Attempts,
		r.clock.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete task result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return n > 0, nil
}

// marshalNullable encodes v as JSON, mapping nil pointers and nil maps to SQL NULL.
func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

var _ core.TaskResultRepository = (*TaskResultRepo)(nil)
