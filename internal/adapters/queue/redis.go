package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/model"
)

// RedisOptions configures a RedisQueue.
type RedisOptions struct {
	Client redis.UniversalClient
	// Prefix namespaces every key; defaults to "moderation".
	Prefix string
	// Lease defaults to 5 minutes.
	Lease time.Duration
	// ClaimInterval is the wait after an empty claim, which bounds pickup latency; defaults to 250ms.
	ClaimInterval time.Duration
	// MoveBatch caps how many ids one Dequeue moves from the delay set or recovers from processing.
	MoveBatch int64
	Logger    *slog.Logger
	Now       func() time.Time
}

// RedisQueue is a core.JobQueue over Redis.
//
// Per kind it keeps a ready list, a delay sorted set scored by due time and a processing sorted
// set scored by lease expiry, both in milliseconds. Job bodies are stored as JSON under
// <prefix>:job:<id>. Claiming pops the ready list and scores the id in the processing set in one
// script, so no worker can see a claimed id without its lease. The three per-kind keys share a
// hash tag so the scripts stay valid on Redis Cluster.
type RedisQueue struct {
	client redis.UniversalClient
	prefix string
	lease  time.Duration
	idle   time.Duration
	batch  int64
	logger *slog.Logger
	now    func() time.Time
}

// moveScoredScript moves up to ARGV[2] ids scored <= ARGV[1] from the sorted set KEYS[1] onto
// the ready list KEYS[2]. It serves both due retries and expired leases.
var moveScoredScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #ids
`)

// claimScript pops the oldest ready id and leases it until ARGV[1].
var claimScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return id
`)

// NewRedisQueue constructs a RedisQueue.
func NewRedisQueue(opts RedisOptions) (*RedisQueue, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = "moderation"
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.ClaimInterval <= 0 {
		opts.ClaimInterval = 250 * time.Millisecond
	}
	if opts.MoveBatch <= 0 {
		opts.MoveBatch = 100
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisQueue{
		client: opts.Client,
		prefix: opts.Prefix,
		lease:  opts.Lease,
		idle:   opts.ClaimInterval,
		batch:  opts.MoveBatch,
		logger: opts.Logger.With("component", "redis_queue"),
		now:    opts.Now,
	}, nil
}

func (q *RedisQueue) readyKey(kind model.Kind) string {
	return q.prefix + ":queue:{" + string(kind) + "}"
}

func (q *RedisQueue) delayKey(kind model.Kind) string {
	return q.prefix + ":delay:{" + string(kind) + "}"
}

func (q *RedisQueue) processingKey(kind model.Kind) string {
	return q.prefix + ":processing:{" + string(kind) + "}"
}

func (q *RedisQueue) jobKey(id string) string { return q.prefix + ":job:" + id }

func scoreOf(t time.Time) float64 { return float64(t.UnixMilli()) }

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// Enqueue stores the job body and makes its id ready, or delayed when ScheduledAt is in the future.
func (q *RedisQueue) Enqueue(ctx context.Context, j *model.Job) error {
	if j == nil {
		return ErrJobRequired
	}
	if j.ID == "" {
		return errors.New("job id is required")
	}
	if !j.Kind.Valid() {
		return fmt.Errorf("invalid job kind: %s", j.Kind)
	}
	now := q.now().UTC()
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = model.DefaultMaxAttempts
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}
	j.Status = model.JobStatusPending
	j.UpdatedAt = now
	return q.store(ctx, j, j.ScheduledAt, false)
}

// store writes the body then publishes the id; the body must exist before any worker can see the id.
func (q *RedisQueue) store(ctx context.Context, j *model.Job, due time.Time, fromProcessing bool) error {
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.Set(ctx, q.jobKey(j.ID), body, 0).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", j.ID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if due.After(q.now()) {
			pipe.ZAdd(ctx, q.delayKey(j.Kind), redis.Z{Score: scoreOf(due), Member: j.ID})
		} else {
			pipe.LPush(ctx, q.readyKey(j.Kind), j.ID)
		}
		if fromProcessing {
			pipe.ZRem(ctx, q.processingKey(j.Kind), j.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", j.ID, err)
	}
	return nil
}

// Dequeue moves due retries, recovers expired leases, then claims the oldest ready id,
// polling every ClaimInterval while the ready list is empty.
func (q *RedisQueue) Dequeue(ctx context.Context, kind model.Kind) (*model.Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid job kind: %s", kind)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := q.poll(ctx, kind)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if id == "" {
			if !sleepCtx(ctx, q.idle) {
				return nil, ctx.Err()
			}
			continue
		}

		j, err := q.load(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if j != nil {
			return j, nil
		}
	}
}

func (q *RedisQueue) poll(ctx context.Context, kind model.Kind) (string, error) {
	if _, err := q.MoveDue(ctx, kind); err != nil {
		return "", err
	}
	if _, err := q.RecoverExpired(ctx, kind); err != nil {
		return "", err
	}
	return q.claim(ctx, kind)
}

// claim atomically moves one ready id into the processing set; "" means the list was empty.
func (q *RedisQueue) claim(ctx context.Context, kind model.Kind) (string, error) {
	expires := q.now().Add(q.lease)
	id, err := claimScript.Run(ctx, q.client,
		[]string{q.readyKey(kind), q.processingKey(kind)}, millis(expires)).Text()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("claim %s: %w", kind, err)
	}
	return id, nil
}

// load reads a claimed job body. A missing body drops the id and returns nil.
func (q *RedisQueue) load(ctx context.Context, kind model.Kind, id string) (*model.Job, error) {
	body, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		q.logger.WarnContext(ctx, "dropping queued id without job body", "job_id", id, "kind", kind)
		q.client.ZRem(ctx, q.processingKey(kind), id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var j model.Job
	if err := json.Unmarshal(body, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	now := q.now().UTC()
	expires := now.Add(q.lease)
	j.Status = model.JobStatusRunning
	j.LeaseExpiresAt = &expires
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	return &j, nil
}

// MoveDue moves delayed ids whose due time has passed onto the ready list.
func (q *RedisQueue) MoveDue(ctx context.Context, kind model.Kind) (int64, error) {
	n, err := moveScoredScript.Run(ctx, q.client,
		[]string{q.delayKey(kind), q.readyKey(kind)}, millis(q.now()), q.batch).Int64()
	if err != nil {
		return 0, fmt.Errorf("move due %s: %w", kind, err)
	}
	return n, nil
}

// RecoverExpired returns processing ids whose lease has expired to the ready list.
func (q *RedisQueue) RecoverExpired(ctx context.Context, kind model.Kind) (int64, error) {
	n, err := moveScoredScript.Run(ctx, q.client,
		[]string{q.processingKey(kind), q.readyKey(kind)}, millis(q.now()), q.batch).Int64()
	if err != nil {
		return 0, fmt.Errorf("recover expired %s: %w", kind, err)
	}
	if n > 0 {
		q.logger.WarnContext(ctx, "requeued jobs with expired leases", "kind", kind, "count", n)
	}
	return n, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Ack removes the job from the processing set and deletes its body.
func (q *RedisQueue) Ack(ctx context.Context, j *model.Job) error {
	if j == nil {
		return ErrJobRequired
	}
	var removed *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, q.processingKey(j.Kind), j.ID)
		pipe.Del(ctx, q.jobKey(j.ID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack job %s: %w", j.ID, err)
	}
	if removed.Val() == 0 {
		q.logger.WarnContext(ctx, "ack found job no longer processing", "job_id", j.ID, "kind", j.Kind)
	}
	return nil
}

// Requeue stores the updated body and schedules the id delay from now.
func (q *RedisQueue) Requeue(ctx context.Context, j *model.Job, delay time.Duration) error {
	if j == nil {
		return ErrJobRequired
	}
	if delay < 0 {
		return errors.New("requeue delay must not be negative")
	}
	now := q.now().UTC()
	due := now.Add(delay)
	j.Status = model.JobStatusPending
	j.ScheduledAt = due
	j.LeaseExpiresAt = nil
	j.UpdatedAt = now
	if err := q.store(ctx, j, due, true); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	return nil
}

// Stats reports ready plus delayed ids as pending and processing ids as running.
func (q *RedisQueue) Stats(ctx context.Context, kind model.Kind) (*model.JobStats, error) {
	var ready, delayed, processing *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ready = pipe.LLen(ctx, q.readyKey(kind))
		delayed = pipe.ZCard(ctx, q.delayKey(kind))
		processing = pipe.ZCard(ctx, q.processingKey(kind))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue stats %s: %w", kind, err)
	}
	return &model.JobStats{
		Pending: int(ready.Val() + delayed.Val()),
		Running: int(processing.Val()),
	}, nil
}

var (
	_ core.JobQueue      = (*RedisQueue)(nil)
	_ core.JobQueueStats = (*RedisQueue)(nil)
)
