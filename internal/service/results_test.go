package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
	apperrors "github.com/target/mmk-moderation/internal/errors"
	"github.com/target/mmk-moderation/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestResultService_CachesTerminalResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo, Cache: cache, TTL: time.Minute})
	require.NoError(t, err)

	done := &model.TaskResult{TaskID: "t1", Status: model.TaskStatusSucceeded, Verdict: model.VerdictPtr(model.VerdictClean)}
	cache.EXPECT().Get(gomock.Any(), "moderation:result:t1").Return(nil, nil)
	repo.EXPECT().GetByID(gomock.Any(), "t1").Return(done, nil)
	cache.EXPECT().Set(gomock.Any(), "moderation:result:t1", gomock.Any(), time.Minute).Return(nil)

	got, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictClean, *got.Verdict)
}

func TestResultService_ServesFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo, Cache: cache})
	require.NoError(t, err)

	raw, err := json.Marshal(model.TaskResult{TaskID: "t1", Status: model.TaskStatusSucceeded, Verdict: model.VerdictPtr(model.VerdictFlagged)})
	require.NoError(t, err)
	cache.EXPECT().Get(gomock.Any(), "moderation:result:t1").Return(raw, nil)

	got, err := svc.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictFlagged, *got.Verdict)
}

func TestResultService_PendingNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo, Cache: cache})
	require.NoError(t, err)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
	repo.EXPECT().GetByID(gomock.Any(), "t2").Return(&model.TaskResult{TaskID: "t2", Status: model.TaskStatusPending}, nil)

	got, err := svc.Get(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestResultService_CacheErrorFallsBackToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo, Cache: cache})
	require.NoError(t, err)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
	repo.EXPECT().GetByID(gomock.Any(), "t3").Return(&model.TaskResult{TaskID: "t3", Status: model.TaskStatusPending}, nil)

	_, err = svc.Get(context.Background(), "t3")
	require.NoError(t, err)
}

func TestResultService_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo})
	require.NoError(t, err)

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, model.ErrTaskNotFound)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Get(context.Background(), "  ")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResultService_CollapsesConcurrentMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo})
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	repo.EXPECT().GetByID(gomock.Any(), "t4").DoAndReturn(func(context.Context, string) (*model.TaskResult, error) {
		once.Do(func() { close(entered) })
		<-release
		return &model.TaskResult{TaskID: "t4", Status: model.TaskStatusPending}, nil
	}).MinTimes(1).MaxTimes(2)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*model.TaskResult, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Get(context.Background(), "t4")
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "t4", r.TaskID)
	}
}

func TestResultService_SharedLookupSurvivesLeaderCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTaskResultRepository(ctrl)
	svc, err := NewResultService(ResultServiceOptions{Repo: repo})
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	lookupErrs := make(chan error, 2)
	repo.EXPECT().GetByID(gomock.Any(), "t5").DoAndReturn(func(ctx context.Context, _ string) (*model.TaskResult, error) {
		once.Do(func() { close(entered) })
		<-release
		lookupErrs <- ctx.Err()
		return &model.TaskResult{TaskID: "t5", Status: model.TaskStatusPending}, nil
	}).MinTimes(1).MaxTimes(2)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(leaderCtx, "t5")
		leaderErr <- err
	}()
	<-entered

	follower := make(chan *model.TaskResult, 1)
	go func() {
		r, err := svc.Get(context.Background(), "t5")
		assert.NoError(t, err)
		follower <- r
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-follower
	require.NotNil(t, got)
	assert.Equal(t, "t5", got.TaskID)
	require.NoError(t, <-lookupErrs)
}
