package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/testutil"
)

func TestReaperRepo_Integration_DeleteTerminalResultsKeepsPending(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedClock(time.Now().Add(-48 * time.Hour))
		results := NewTaskResultRepo(db, clock)

		pending, done := uuid.NewString(), uuid.NewString()
		require.NoError(t, results.CreatePending(ctx, &model.TaskResult{TaskID: pending, Kind: model.KindText}))
		require.NoError(t, results.CreatePending(ctx, &model.TaskResult{TaskID: done, Kind: model.KindText}))
		_, err := results.Complete(ctx, model.CompleteTaskParams{
			TaskID: done, Status: model.TaskStatusSucceeded, Verdict: model.VerdictPtr(model.VerdictClean),
		})
		require.NoError(t, err)

		reaper := NewReaperRepo(db, nil)
		n, err := reaper.DeleteTerminalResults(ctx, core.DeleteOlderThanParams{MaxAge: 24 * time.Hour, BatchSize: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = results.GetByID(ctx, pending)
		require.NoError(t, err)
		_, err = results.GetByID(ctx, done)
		require.ErrorIs(t, err, ErrTaskResultNotFound)
	})
}

func TestReaperRepo_Integration_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedClock(time.Now().Add(-10 * 24 * time.Hour))
		jobs := NewJobRepo(db, RepoConfig{Clock: clock})

		for range 3 {
			j := testutil.NewTextJob("old").ScheduledAt(clock.Now()).Build()
			require.NoError(t, jobs.Create(ctx, j))
			_, err := jobs.ReserveNext(ctx, model.KindText, 30)
			require.NoError(t, err)
			_, err = jobs.Complete(ctx, j.ID)
			require.NoError(t, err)
		}
		require.NoError(t, jobs.Create(ctx, testutil.NewTextJob("pending").Build()))

		reaper := NewReaperRepo(db, nil)
		params := core.DeleteOldJobsParams{Status: model.JobStatusCompleted, MaxAge: 7 * 24 * time.Hour, BatchSize: 2}
		n, err := reaper.DeleteOldJobs(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		n, err = reaper.DeleteOldJobs(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		states := testutil.InspectJobStates(t, db)
		require.Len(t, states, 1)
		assert.Equal(t, "pending", states[0].Status)
	})
}

func TestReaperRepo_ValidatesParams(t *testing.T) {
	reaper := NewReaperRepo(nil, nil)
	_, err := reaper.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{Status: "gone", MaxAge: time.Hour, BatchSize: 1})
	require.Error(t, err)
	_, err = reaper.DeleteTerminalResults(context.Background(), core.DeleteOlderThanParams{MaxAge: time.Hour})
	require.Error(t, err)
	_, err = reaper.DeleteOldMetrics(context.Background(), core.DeleteOlderThanParams{BatchSize: 1})
	require.Error(t, err)
}
