package data

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/testutil"
)

func TestJobRepo_Integration_CreateReserveComplete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		job := testutil.NewTextJob("hello").Build()
		job.ScheduledAt = time.Time{}
		require.NoError(t, repo.Create(ctx, job))
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, model.DefaultMaxAttempts, job.MaxAttempts)

		reserved, err := repo.ReserveNext(ctx, model.KindText, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)
		require.NotNil(t, reserved.LeaseExpiresAt)
		assert.JSONEq(t, string(job.Payload), string(reserved.Payload))

		_, err = repo.ReserveNext(ctx, model.KindText, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		ok, err := repo.Complete(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Complete(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok, "completing twice must be a no-op")

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
	})
}

func TestJobRepo_Integration_RetryDelaysVisibility(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedClock(time.Now())
		repo := NewJobRepo(db, RepoConfig{Clock: clock})

		job := testutil.NewImageJob("/tmp/a.png").ScheduledAt(clock.Now()).Build()
		require.NoError(t, repo.Create(ctx, job))

		_, err := repo.ReserveNext(ctx, model.KindImage, 30)
		require.NoError(t, err)

		ok, err := repo.Retry(ctx, core.RetryJobParams{ID: job.ID, AttemptCount: 1, Delay: time.Minute, LastError: "boom"})
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = repo.ReserveNext(ctx, model.KindImage, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable, "retry must not be visible before its delay")

		clock.Advance(61 * time.Second)
		again, err := repo.ReserveNext(ctx, model.KindImage, 30)
		require.NoError(t, err)
		assert.Equal(t, 1, again.AttemptCount)
		require.NotNil(t, again.LastError)
		assert.Equal(t, "boom", *again.LastError)
	})
}

func TestJobRepo_Integration_ExpiredLeaseIsRedelivered(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedClock(time.Now())
		repo := NewJobRepo(db, RepoConfig{Clock: clock})

		job := testutil.NewTextJob("x").ScheduledAt(clock.Now()).Build()
		require.NoError(t, repo.Create(ctx, job))
		_, err := repo.ReserveNext(ctx, model.KindText, 5)
		require.NoError(t, err)

		clock.Advance(10 * time.Second)
		again, err := repo.ReserveNext(ctx, model.KindText, 5)
		require.NoError(t, err)
		assert.Equal(t, job.ID, again.ID)
	})
}

func TestJobRepo_Integration_ConcurrentReserveIsExclusive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		const jobs = 6
		for range jobs {
			require.NoError(t, repo.Create(ctx, testutil.NewTextJob("c").ScheduledAt(time.Now().Add(-time.Second)).Build()))
		}

		var mu sync.Mutex
		seen := map[string]int{}
		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					j, err := repo.ReserveNext(ctx, model.KindText, 30)
					if errors.Is(err, model.ErrNoJobsAvailable) {
						return
					}
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					seen[j.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, jobs)
		for id, n := range seen {
			assert.Equal(t, 1, n, "job %s reserved more than once", id)
		}
	})
}

func TestJobRepo_Integration_WaitForNotification(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- repo.WaitForNotification(ctx, model.KindImage) }()

		// The listener may not be registered yet, so keep enqueueing until it fires.
		var waitErr error
		require.Eventually(t, func() bool {
			assert.NoError(t, repo.Create(ctx, testutil.NewImageJob("/tmp/b.png").Build()))
			select {
			case waitErr = <-done:
				return true
			default:
				return false
			}
		}, 4*time.Second, 50*time.Millisecond)
		require.NoError(t, waitErr)
	})
}
