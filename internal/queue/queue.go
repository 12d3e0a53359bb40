// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package queue is a durable job queue shared by every worker process.
//
// Ready jobs live in a redis list consumed from the left; at-front jobs are
// pushed left, everything else right. Delayed jobs (including retries) live
// in a sorted set scored by their due time and are promoted atomically by a
// lua script, so any number of processes may run the promoter concurrently.
// Unique jobs hold a marker key until a worker dequeues them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/domain"
)

const (
	defaultPrefix    = "pr:queue"
	promoteBatchSize = 100
	uniqueGrace      = time.Hour
)

// DefaultRetryIntervals is the backoff between attempts: three retries, then the job is dropped.
var DefaultRetryIntervals = []time.Duration{10 * time.Second, 30 * time.Second, 120 * time.Second}

// Job is the unit of work stored in redis. Payload holds the handler's
// arguments verbatim so any worker can resume from it.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	AtFront    bool            `json:"atFront,omitempty"`
	NoRetry    bool            `json:"noRetry,omitempty"`
	UniqueKey  string          `json:"unique,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return errors.Wrapf(err, "decode payload of %s job %s", j.Name, j.ID)
	}
	return nil
}

// Enqueuer is the producer side of the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...Option) (string, error)
}

// Options is the resolved form of a set of Option values.
type Options struct {
	Delay     time.Duration
	AtFront   bool
	NoRetry   bool
	UniqueKey string
}

// Option customizes a single Enqueue call.
type Option func(*Options)

// NewOptions applies opts in order.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// In delays the job by d.
func In(d time.Duration) Option {
	return func(o *Options) { o.Delay = d }
}

// AtFront places the job ahead of everything already waiting.
func AtFront() Option {
	return func(o *Options) { o.AtFront = true }
}

// NoRetry drops the job after its first failure.
func NoRetry() Option {
	return func(o *Options) { o.NoRetry = true }
}

// Unique skips the enqueue while another job with the same key is waiting.
func Unique(key string) Option {
	return func(o *Options) { o.UniqueKey = key }
}

// Settings holds the queue wiring; zero values pick defaults.
type Settings struct {
	Prefix         string
	RetryIntervals []time.Duration
}

// Queue is the redis backed implementation of Enqueuer.
type Queue struct {
	client redis.UniversalClient
	prefix string
	retry  []time.Duration
	now    func() time.Time
}

// New creates a queue on client.
func New(client redis.UniversalClient, settings Settings) *Queue {
	if settings.Prefix == "" {
		settings.Prefix = defaultPrefix
	}
	if settings.RetryIntervals == nil {
		settings.RetryIntervals = DefaultRetryIntervals
	}

	return &Queue{
		client: client,
		prefix: settings.Prefix,
		retry:  settings.RetryIntervals,
		now:    time.Now,
	}
}

func (q *Queue) readyKey() string            { return q.prefix + ":ready" }
func (q *Queue) scheduledKey() string        { return q.prefix + ":scheduled" }
func (q *Queue) uniqueKey(key string) string { return q.prefix + ":unique:" + key }

// Enqueue stores a job for name. It returns the job id; for a unique job that
// is already waiting it returns the id of the waiting job and no error.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any, opts ...Option) (string, error) {
	o := NewOptions(opts...)

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrapf(err, "encode payload for %s", name)
	}

	now := q.now()
	job := &Job{
		ID:         jobID(name, raw, now),
		Name:       name,
		Payload:    raw,
		AtFront:    o.AtFront,
		NoRetry:    o.NoRetry,
		UniqueKey:  o.UniqueKey,
		EnqueuedAt: now,
	}

	if job.UniqueKey != "" {
		claimed, err := q.client.SetNX(ctx, q.uniqueKey(job.UniqueKey), job.ID, o.Delay+uniqueGrace).Result()
		if err != nil {
			return "", cacheErr("claim unique job", err)
		}
		if !claimed {
			existing, _ := q.client.Get(ctx, q.uniqueKey(job.UniqueKey)).Result()
			log.Trace().Str("job", name).Str("unique", job.UniqueKey).Msg("queue: job already waiting")
			return existing, nil
		}
	}

	if err := q.push(ctx, job, o.Delay); err != nil {
		if job.UniqueKey != "" {
			_ = q.client.Del(ctx, q.uniqueKey(job.UniqueKey)).Err()
		}
		return "", err
	}

	return job.ID, nil
}

func (q *Queue) push(ctx context.Context, job *Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Wrapf(err, "encode %s job", job.Name)
	}

	switch {
	case delay > 0:
		due := q.now().Add(delay).UnixMilli()
		err = q.client.ZAdd(ctx, q.scheduledKey(), redis.Z{Score: float64(due), Member: raw}).Err()
	case job.AtFront:
		err = q.client.LPush(ctx, q.readyKey(), raw).Err()
	default:
		err = q.client.RPush(ctx, q.readyKey(), raw).Err()
	}
	if err != nil {
		return cacheErr("push "+job.Name, err)
	}
	return nil
}

// retryLater reschedules a failed job. It reports false when the job has no
// attempts left.
func (q *Queue) retryLater(ctx context.Context, job *Job) (bool, time.Duration, error) {
	if job.NoRetry || job.Attempt >= len(q.retry) {
		return false, 0, nil
	}

	delay := q.retry[job.Attempt]
	job.Attempt++
	// the unique marker was released on dequeue; retries are not deduplicated
	job.UniqueKey = ""
	return true, delay, q.push(ctx, job, delay)
}

var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local front = {}
for _, raw in ipairs(due) do
	if redis.call('ZREM', KEYS[1], raw) == 1 then
		local job = cjson.decode(raw)
		if job['atFront'] then
			front[#front + 1] = raw
		else
			redis.call('RPUSH', KEYS[2], raw)
		end
	end
end
for i = #front, 1, -1 do
	redis.call('LPUSH', KEYS[2], front[i])
end
return #due
`)

// PromoteDue moves scheduled jobs whose time has come to the ready list and
// returns how many were moved.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.scheduledKey(), q.readyKey()},
		q.now().UnixMilli(), promoteBatchSize,
	).Int()
	if err != nil {
		return 0, cacheErr("promote scheduled jobs", err)
	}
	return n, nil
}

// Dequeue blocks up to timeout for the next ready job. It returns nil, nil on timeout.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BLPop(ctx, timeout, q.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("dequeue", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, errors.Wrap(err, "decode dequeued job")
	}

	if job.UniqueKey != "" {
		if err := q.client.Del(ctx, q.uniqueKey(job.UniqueKey)).Err(); err != nil {
			log.Warn().Err(err).Str("job", job.Name).Msg("queue: failed to release unique marker")
		}
	}

	return &job, nil
}

// Stats reports how many jobs are ready and scheduled.
func (q *Queue) Stats(ctx context.Context) (ready, scheduled int64, err error) {
	pipe := q.client.Pipeline()
	readyCmd := pipe.LLen(ctx, q.readyKey())
	scheduledCmd := pipe.ZCard(ctx, q.scheduledKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, cacheErr("queue stats", err)
	}
	return readyCmd.Val(), scheduledCmd.Val(), nil
}

func jobID(name string, payload []byte, now time.Time) string {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	_, _ = h.Write(payload)
	_, _ = h.WriteString(strconv.FormatInt(now.UnixNano(), 10))
	return strconv.FormatUint(h.Sum64(), 16)
}

func cacheErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrCacheUnavailable, op, err)
}
