package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
)

// DispatchServiceOptions groups dependencies for DispatchService.
type DispatchServiceOptions struct {
	Queue   core.JobQueue             // Required
	Results core.TaskResultRepository // Required
	Files   core.FileStore            // Optional: required for SubmitImage
	Logger  *slog.Logger
	// MaxAttempts is stamped on every new job; defaults to 3.
	MaxAttempts int
	Now         func() time.Time
}

// DispatchService accepts moderation requests and queues them. It never waits for classification.
type DispatchService struct {
	queue       core.JobQueue
	results     core.TaskResultRepository
	files       core.FileStore
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(opts DispatchServiceOptions) (*DispatchService, error) {
	if opts.Queue == nil {
		return nil, errors.New("JobQueue is required")
	}
	if opts.Results == nil {
		return nil, errors.New("TaskResultRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DispatchService{
		queue:       opts.Queue,
		results:     opts.Results,
		files:       opts.Files,
		logger:      logger.With("component", "dispatcher"),
		maxAttempts: maxAttempts,
		now:         now,
	}, nil
}

// SubmitRequest describes one task to queue.
type SubmitRequest struct {
	Kind     model.Kind
	SourceID string
	Payload  any
	FileInfo *model.FileInfo
}

// Submit writes a pending result, then enqueues the job, and returns the task id.
// If the enqueue fails the pending result is marked failed so it never stays pending.
func (s *DispatchService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !req.Kind.Valid() {
		return "", apperrors.Validationf("unsupported kind %q", req.Kind)
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	taskID := uuid.NewString()
	now := s.now().UTC()

	if err := s.results.CreatePending(ctx, &model.TaskResult{
		TaskID:   taskID,
		Kind:     req.Kind,
		SourceID: req.SourceID,
		FileInfo: req.FileInfo,
	}); err != nil {
		return "", fmt.Errorf("create pending result: %w", err)
	}

	j := &model.Job{
		ID:          taskID,
		Kind:        req.Kind,
		Status:      model.JobStatusPending,
		Payload:     payload,
		MaxAttempts: s.maxAttempts,
		ScheduledAt: now,
		CreatedAt:   now,
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		s.failPending(ctx, taskID, err)
		return "", apperrors.Wrap(fmt.Errorf("enqueue job: %w", err), apperrors.ErrCodeUnavailable, "moderation queue unavailable")
	}

	s.logger.DebugContext(ctx, "task submitted", "task_id", taskID, "kind", req.Kind, "source_id", req.SourceID)
	return taskID, nil
}

func (s *DispatchService) failPending(ctx context.Context, taskID string, cause error) {
	msg := "enqueue failed: " + cause.Error()
	_, err := s.results.Complete(context.WithoutCancel(ctx), model.CompleteTaskParams{
		TaskID: taskID,
		Status: model.TaskStatusFailed,
		Error:  &msg,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "mark task failed after enqueue error",
			"task_id", taskID, "error", err, "enqueue_error", cause)
		return
	}
	s.logger.ErrorContext(ctx, "enqueue failed", "task_id", taskID, "error", cause)
}

// SubmitText queues a text moderation task.
func (s *DispatchService) SubmitText(ctx context.Context, content, sourceID string) (string, error) {
	return s.Submit(ctx, SubmitRequest{
		Kind:     model.KindText,
		SourceID: sourceID,
		Payload:  model.TextJobPayload{Content: content, SourceID: sourceID},
	})
}

// ImageSubmission is the result of SubmitImage.
type ImageSubmission struct {
	TaskID   string          `json:"task_id"`
	FileInfo *model.FileInfo `json:"file_info"`
}

// SubmitImage stores the upload and queues an image moderation task for it.
// Storage rejections are validation errors and create no task.
func (s *DispatchService) SubmitImage(ctx context.Context, upload core.Upload, sourceID string) (*ImageSubmission, error) {
	if s.files == nil {
		return nil, errors.New("file store is not configured")
	}
	info, err := s.files.Save(ctx, upload)
	if err != nil {
		verr := apperrors.ValidationField("file", err.Error())
		verr.Cause = err
		return nil, verr
	}

	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		sourceID = DefaultImageSourceID()
	}

	taskID, err := s.Submit(ctx, SubmitRequest{
		Kind:     model.KindImage,
		SourceID: sourceID,
		Payload:  model.ImageJobPayload{FilePath: info.FilePath, SourceID: sourceID, FileInfo: *info},
		FileInfo: info,
	})
	if err != nil {
		if rmErr := s.files.Remove(context.WithoutCancel(ctx), info.FilePath); rmErr != nil {
			s.logger.WarnContext(ctx, "remove orphaned upload", "path", info.FilePath, "error", rmErr)
		}
		return nil, err
	}
	return &ImageSubmission{TaskID: taskID, FileInfo: info}, nil
}

// DefaultImageSourceID returns img-<8 hex>.
func DefaultImageSourceID() string {
	id := uuid.New()
	return "img-" + strings.ReplaceAll(id.String(), "-", "")[:8]
}
