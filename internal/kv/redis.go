// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces keys when no prefix is configured.
const DefaultRedisPrefix = "folio-chat:"

// redisOpTimeout bounds every Redis round trip.
const redisOpTimeout = 5 * time.Second

// Redis keeps keys on a Redis server under a common prefix. Values never
// expire.
type Redis struct {
	rdb    *redis.Client
	prefix string
	closed atomic.Bool
}

// OpenRedis connects to addr and verifies the connection with PING.
func OpenRedis(addr, password string, db int, prefix string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis store: address is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{rdb: rdb, prefix: prefix}, nil
}

// Get implements Store.
func (r *Redis) Get(key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Store.
func (r *Redis) Set(key, value string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.rdb.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (r *Redis) Remove(key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (r *Redis) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.rdb.Close()
}
