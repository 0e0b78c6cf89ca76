package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/testutil"
)

func recordEvent(t *testing.T, repo *EventRepo, req model.RecordEventRequest) {
	t.Helper()
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	ok, err := repo.Record(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEventRepo_Integration_RecordIsIdempotentPerTask(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEventRepo(db, nil)

		req := model.RecordEventRequest{
			TaskID:  uuid.NewString(),
			Source:  model.KindText,
			ItemID:  "c-1",
			Verdict: model.VerdictClean,
		}
		ok, err := repo.Record(ctx, req)
		require.NoError(t, err)
		assert.True(t, ok)

		req.Verdict = model.VerdictFlagged
		ok, err = repo.Record(ctx, req)
		require.NoError(t, err)
		assert.False(t, ok)

		var n int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM moderation_events WHERE task_id = $1`, req.TaskID).Scan(&n))
		assert.Equal(t, 1, n)

		ev, err := repo.GetByTaskID(ctx, req.TaskID)
		require.NoError(t, err)
		assert.Equal(t, model.VerdictClean, ev.Verdict)
		assert.Equal(t, "c-1", ev.ItemID)
	})
}

func TestEventRepo_Integration_GetByTaskIDNotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewEventRepo(db, nil)

		_, err := repo.GetByTaskID(context.Background(), uuid.NewString())
		require.ErrorIs(t, err, model.ErrEventNotFound)

		_, err = repo.GetByTaskID(context.Background(), "not-a-uuid")
		require.ErrorIs(t, err, model.ErrEventNotFound)
	})
}

func TestEventRepo_Integration_RecordImageWritesAnalysis(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEventRepo(db, nil)

		taskID := uuid.NewString()
		recordEvent(t, repo, model.RecordEventRequest{
			TaskID:  taskID,
			Source:  model.KindImage,
			ItemID:  "img-1",
			Verdict: model.VerdictFlagged,
			Scores:  model.Scores{"nsfw": 0.9},
			File: &model.FileInfo{
				FilePath: "/u/a.png", FileSize: 2048, FileType: "image/png", FileHash: "abc",
				Dimensions: &model.Dimensions{Width: 10, Height: 20},
			},
			Analysis:     &model.ImageAnalysis{NSFWScores: model.Scores{"nsfw": 0.9}, DetectedObjects: json.RawMessage(`[]`)},
			ProcessingMs: testutil.Int64Ptr(120),
		})

		var hash string
		var nsfw []byte
		require.NoError(t, db.QueryRowContext(ctx, `
			SELECT ia.image_hash, ia.nsfw_scores
			FROM image_analysis ia JOIN moderation_events e ON e.id = ia.moderation_event_id
			WHERE e.task_id = $1`, taskID).Scan(&hash, &nsfw))
		assert.Equal(t, "abc", hash)
		assert.JSONEq(t, `{"nsfw":0.9}`, string(nsfw))
	})
}

func TestEventRepo_Integration_DailyStats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)
	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEventRepo(db, nil)
		day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, v := range []model.Verdict{model.VerdictClean, model.VerdictClean, model.VerdictClean, model.VerdictFlagged, model.VerdictFlagged} {
			recordEvent(t, repo, model.RecordEventRequest{
				Source: model.KindText, Verdict: v, OccurredAt: day.Add(time.Duration(i) * time.Hour),
				ProcessingMs: testutil.Int64Ptr(int64(100 * (i + 1))),
			})
		}
		recordEvent(t, repo, model.RecordEventRequest{Source: model.KindText, Verdict: model.VerdictError, OccurredAt: day.AddDate(0, 0, 1)})

		stats, err := repo.DailyStats(ctx, day.Add(13*time.Hour), model.KindText)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.TotalRequests)
		assert.Equal(t, 2, stats.FlaggedCount)
		assert.Equal(t, 3, stats.CleanCount)
		assert.Equal(t, 0, stats.ErrorCount)
		require.NotNil(t, stats.AvgProcessingTime)
		assert.InDelta(t, 300, *stats.AvgProcessingTime, 1e-9)
		assert.Nil(t, stats.TotalFileSize)

		image, err := repo.DailyStats(ctx, day, model.KindImage)
		require.NoError(t, err)
		assert.Equal(t, model.DailyStats{}, image)
	})
}
