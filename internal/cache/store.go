// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cache is the shared key-value store every pipeline stage reads and
// writes. It is the only synchronization point between worker processes, so
// every mutation is a single atomic redis command; multi-key publishing goes
// through a best-effort pipeline.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autobrr/plexreshare/internal/domain"
)

const scanBatchSize = 1000

// Store is the cache contract the pipeline depends on.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HMerge(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	SMembers(ctx context.Context, key string) ([]string, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	Pipeline(ctx context.Context, fn func(Batch)) error
}

// Batch collects writes executed together by Store.Pipeline.
type Batch interface {
	Set(key, value string, ttl time.Duration)
	Delete(keys ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	Expire(key string, ttl time.Duration)
}

// RedisStore implements Store on a redis client.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying client for components that need raw commands.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrCacheUnavailable, op, key, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return val, true, nil
}

// Set writes key; a zero ttl keeps the key forever.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// SetNX writes key only if it does not exist and reports whether it did.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable("exists", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", keys[0], err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return unavailable("expire", key, err)
	}
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall", key, err)
	}
	return fields, nil
}

// HMerge layers fields over the existing hash. Colliding fields take the new
// value and unrelated fields survive. The hash ttl is refreshed.
func (s *RedisStore) HMerge(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable("hset", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, unavailable("smembers", key, err)
	}
	return members, nil
}

// ScanPrefix returns every key starting with prefix. Glob metacharacters in
// prefix are matched literally.
func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, EscapeGlob(prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan", prefix, err)
	}
	return keys, nil
}

// Pipeline executes every write queued by fn in one round trip. It is not a
// transaction: a partial failure leaves earlier commands applied.
func (s *RedisStore) Pipeline(ctx context.Context, fn func(Batch)) error {
	pipe := s.client.Pipeline()
	b := &redisBatch{ctx: ctx, pipe: pipe}
	fn(b)
	if b.queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("pipeline", fmt.Sprintf("(%d commands)", b.queued), err)
	}
	return nil
}

type redisBatch struct {
	ctx    context.Context
	pipe   redis.Pipeliner
	queued int
}

func (b *redisBatch) Set(key, value string, ttl time.Duration) {
	b.pipe.Set(b.ctx, key, value, ttl)
	b.queued++
}

func (b *redisBatch) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	b.pipe.Del(b.ctx, keys...)
	b.queued++
}

func (b *redisBatch) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.pipe.SAdd(b.ctx, key, args...)
	b.queued++
}

func (b *redisBatch) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	b.pipe.SRem(b.ctx, key, args...)
	b.queued++
}

func (b *redisBatch) Expire(key string, ttl time.Duration) {
	b.pipe.Expire(b.ctx, key, ttl)
	b.queued++
}

// EscapeGlob escapes the characters redis MATCH patterns treat specially.
func EscapeGlob(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
