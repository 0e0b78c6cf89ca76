package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/mocks"
	"github.com/target/mmk-moderation/internal/testutil"
	"go.uber.org/mock/gomock"
)

type chanNotifier struct {
	ch      chan struct{}
	stopped bool
}

func (n *chanNotifier) Subscribe(model.Kind) (func(), <-chan struct{}) { return func() {}, n.ch }
func (n *chanNotifier) StopAll()                                       { n.stopped = true }

func newTestPostgresQueue(t *testing.T, repo core.JobRepository, n *chanNotifier) *PostgresQueue {
	t.Helper()
	q, err := NewPostgresQueue(PostgresOptions{
		Repo:         repo,
		Notifier:     n,
		Lease:        time.Minute,
		PollInterval: time.Hour,
	})
	require.NoError(t, err)
	return q
}

func TestNewPostgresQueue_RequiresRepo(t *testing.T) {
	_, err := NewPostgresQueue(PostgresOptions{})
	require.Error(t, err)
}

func TestPostgresQueue_DequeueWaitsForNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	n := &chanNotifier{ch: make(chan struct{}, 1)}
	q := newTestPostgresQueue(t, repo, n)

	j := testutil.NewTextJob("hi").Build()
	gomock.InOrder(
		repo.EXPECT().ReserveNext(gomock.Any(), model.KindText, 60).Return(nil, model.ErrNoJobsAvailable),
		repo.EXPECT().ReserveNext(gomock.Any(), model.KindText, 60).Return(j, nil),
	)

	n.ch <- struct{}{}
	got, err := q.Dequeue(context.Background(), model.KindText)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
}

func TestPostgresQueue_DequeuePollsWithoutNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	q, err := NewPostgresQueue(PostgresOptions{
		Repo:         repo,
		Notifier:     &chanNotifier{ch: make(chan struct{})},
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	j := testutil.NewImageJob("/tmp/x.png").Build()
	gomock.InOrder(
		repo.EXPECT().ReserveNext(gomock.Any(), model.KindImage, 300).Return(nil, model.ErrNoJobsAvailable).Times(2),
		repo.EXPECT().ReserveNext(gomock.Any(), model.KindImage, 300).Return(j, nil),
	)

	got, err := q.Dequeue(context.Background(), model.KindImage)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
}

func TestPostgresQueue_DequeueHonorsContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	q := newTestPostgresQueue(t, repo, &chanNotifier{ch: make(chan struct{})})

	repo.EXPECT().ReserveNext(gomock.Any(), model.KindText, gomock.Any()).Return(nil, model.ErrNoJobsAvailable).AnyTimes()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx, model.KindText)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPostgresQueue_DequeueReturnsRepoErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	q := newTestPostgresQueue(t, repo, &chanNotifier{ch: make(chan struct{})})

	boom := errors.New("connection reset")
	repo.EXPECT().ReserveNext(gomock.Any(), model.KindText, gomock.Any()).Return(nil, boom)

	_, err := q.Dequeue(context.Background(), model.KindText)
	require.ErrorIs(t, err, boom)
}

func TestPostgresQueue_RequeuePassesAttemptAndLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	q := newTestPostgresQueue(t, repo, &chanNotifier{ch: make(chan struct{})})

	j := testutil.NewTextJob("x").WithAttempts(2).Build()
	j.LastError = testutil.StringPtr("classifier unavailable")

	repo.EXPECT().Retry(gomock.Any(), core.RetryJobParams{
		ID: j.ID, AttemptCount: 2, Delay: time.Minute, LastError: "classifier unavailable",
	}).Return(true, nil)

	require.NoError(t, q.Requeue(context.Background(), j, time.Minute))
}

func TestPostgresQueue_AckLostLeaseIsNotAnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	q := newTestPostgresQueue(t, repo, &chanNotifier{ch: make(chan struct{})})

	j := testutil.NewTextJob("x").Build()
	repo.EXPECT().Complete(gomock.Any(), j.ID).Return(false, nil)
	require.NoError(t, q.Ack(context.Background(), j))

	require.ErrorIs(t, q.Ack(context.Background(), nil), ErrJobRequired)
	require.ErrorIs(t, q.Requeue(context.Background(), nil, 0), ErrJobRequired)
}

func TestPostgresQueue_CloseKeepsInjectedNotifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	n := &chanNotifier{ch: make(chan struct{})}
	q := newTestPostgresQueue(t, repo, n)

	q.subscribe(model.KindText)
	q.Close()
	assert.False(t, n.stopped)
}
