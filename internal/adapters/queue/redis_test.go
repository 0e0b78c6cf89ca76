package queue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/testutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRedisQueue(t *testing.T, clock *testClock) *RedisQueue {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	q, err := NewRedisQueue(RedisOptions{
		Client:        client,
		Prefix:        "test-" + t.Name(),
		Lease:         time.Second,
		ClaimInterval: 20 * time.Millisecond,
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return q
}

func TestRedisQueue_FIFOAndAck(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	first := testutil.NewTextJob("one").ScheduledAt(time.Time{}).Build()
	second := testutil.NewTextJob("two").ScheduledAt(time.Time{}).Build()
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, model.JobStatusRunning, got.Status)
	assert.JSONEq(t, string(first.Payload), string(got.Payload))

	stats, err := q.Stats(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, &model.JobStats{Pending: 1, Running: 1}, stats)

	require.NoError(t, q.Ack(ctx, got))
	exists, err := q.client.Exists(ctx, q.jobKey(first.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	got, err = q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestRedisQueue_RequeueDelaysUntilDue(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	j := testutil.NewImageJob("/tmp/a.png").ScheduledAt(time.Time{}).Build()
	require.NoError(t, q.Enqueue(ctx, j))
	got, err := q.Dequeue(ctx, model.KindImage)
	require.NoError(t, err)

	got.AttemptCount++
	require.NoError(t, q.Requeue(ctx, got, time.Minute))

	stats, err := q.Stats(ctx, model.KindImage)
	require.NoError(t, err)
	assert.Equal(t, &model.JobStats{Pending: 1}, stats)

	moved, err := q.MoveDue(ctx, model.KindImage)
	require.NoError(t, err)
	assert.Zero(t, moved)

	clock.Add(61 * time.Second)
	again, err := q.Dequeue(ctx, model.KindImage)
	require.NoError(t, err)
	assert.Equal(t, j.ID, again.ID)
	assert.Equal(t, 1, again.AttemptCount)
}

func TestRedisQueue_RecoversExpiredLease(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	j := testutil.NewTextJob("lost").ScheduledAt(time.Time{}).Build()
	require.NoError(t, q.Enqueue(ctx, j))
	_, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)

	n, err := q.RecoverExpired(ctx, model.KindText)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Add(2 * time.Second)
	n, err = q.RecoverExpired(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, j.ID, again.ID)
}

func TestRedisQueue_ClaimedJobIsNotRecoveredByOtherWorker(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	j := testutil.NewTextJob("only once").ScheduledAt(time.Time{}).Build()
	require.NoError(t, q.Enqueue(ctx, j))

	held, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, j.ID, held.ID)

	score, err := q.client.ZScore(ctx, q.processingKey(model.KindText), j.ID).Result()
	require.NoError(t, err)
	assert.InDelta(t, scoreOf(clock.Now().Add(time.Second)), score, 0)

	// A second worker runs recovery and then waits on an empty ready list.
	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(waitCtx, model.KindText)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	stats, err := q.Stats(ctx, model.KindText)
	require.NoError(t, err)
	assert.Equal(t, &model.JobStats{Running: 1}, stats)
}

func TestRedisQueue_ConcurrentWorkersClaimEachJobOnce(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	const jobs = 20
	for i := range jobs {
		j := testutil.NewTextJob("bulk " + strconv.Itoa(i)).ScheduledAt(time.Time{}).Build()
		require.NoError(t, q.Enqueue(ctx, j))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				wctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
				got, err := q.Dequeue(wctx, model.KindText)
				cancel()
				if err != nil {
					return
				}
				mu.Lock()
				seen[got.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestRedisQueue_RequeueKeepsLastError(t *testing.T) {
	clock := &testClock{now: time.Now()}
	q := newTestRedisQueue(t, clock)
	ctx := context.Background()

	j := testutil.NewTextJob("hello").ScheduledAt(time.Time{}).Build()
	require.NoError(t, q.Enqueue(ctx, j))
	got, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)

	got.AttemptCount++
	got.LastError = testutil.StringPtr("classifier unavailable")
	require.NoError(t, q.Requeue(ctx, got, 0))

	again, err := q.Dequeue(ctx, model.KindText)
	require.NoError(t, err)
	require.NotNil(t, again.LastError)
	assert.Equal(t, "classifier unavailable", *again.LastError)
	assert.Equal(t, 1, again.AttemptCount)
}

func TestRedisQueue_DequeueHonorsContext(t *testing.T) {
	q := newTestRedisQueue(t, &testClock{now: time.Now()})
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, model.KindText)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRedisQueue_Validates(t *testing.T) {
	_, err := NewRedisQueue(RedisOptions{})
	require.Error(t, err)
}
