package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"golang.org/x/sync/singleflight"
)

const (
	resultCachePrefix     = "moderation:result:"
	defaultResultCacheTTL = time.Hour
	defaultLookupTimeout  = 5 * time.Second
)

// ResultServiceOptions groups dependencies for ResultService.
type ResultServiceOptions struct {
	Repo  core.TaskResultRepository // Required
	Cache core.CacheRepository      // Optional: terminal results are cached here
	TTL   time.Duration
	// LookupTimeout bounds a repository read shared by concurrent callers; defaults to 5s.
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

// ResultService reads task results. Reads never wait on workers.
//
// Terminal results are immutable, so they are cached without invalidation.
// Pending results always go to the repository.
type ResultService struct {
	repo    core.TaskResultRepository
	cache   core.CacheRepository
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewResultService constructs a ResultService.
func NewResultService(opts ResultServiceOptions) (*ResultService, error) {
	if opts.Repo == nil {
		return nil, errors.New("TaskResultRepository is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultResultCacheTTL
	}
	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultService{
		repo:    opts.Repo,
		cache:   opts.Cache,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.With("component", "result_service"),
	}, nil
}

// ResultCacheKey returns the cache key of a task result.
func ResultCacheKey(taskID string) string {
	return resultCachePrefix + taskID
}

// Get returns the result for taskID, or a not-found AppError.
func (s *ResultService) Get(ctx context.Context, taskID string) (*model.TaskResult, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, apperrors.NotFound("task not found")
	}

	if cached := s.readCache(ctx, taskID); cached != nil {
		return cached, nil
	}

	// The shared read outlives any one caller; each caller still stops waiting on its own ctx.
	ch := s.group.DoChan(taskID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		res, err := s.repo.GetByID(lookupCtx, taskID)
		if err != nil {
			return nil, err
		}
		if res.Terminal() {
			s.writeCache(lookupCtx, res)
		}
		return res, nil
	})

	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return nil, apperrors.NotFound("task not found")
		}
		return nil, fmt.Errorf("get task result: %w", err)
	}

	// Callers sharing a flight get their own copy.
	res := *v.(*model.TaskResult)
	return &res, nil
}

func (s *ResultService) readCache(ctx context.Context, taskID string) *model.TaskResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, ResultCacheKey(taskID))
	if err != nil {
		s.logger.WarnContext(ctx, "result cache read failed", "task_id", taskID, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var res model.TaskResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.logger.WarnContext(ctx, "result cache entry corrupt", "task_id", taskID, "error", err)
		return nil
	}
	return &res
}

func (s *ResultService) writeCache(ctx context.Context, res *model.TaskResult) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, ResultCacheKey(res.TaskID), raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "result cache write failed", "task_id", res.TaskID, "error", err)
	}
}
