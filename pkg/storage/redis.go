// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password authenticate against Redis ACLs.
	Username string
	Password string

	// DB selects the logical database.
	DB int

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements Store on a Redis backend, enabling horizontal
// scaling: every replica observes the same PAR entries, token statuses and
// grants. Absolute and relative expirations map onto Redis TTLs; sliding
// windows are refreshed on read with PEXPIRE, capped by the stored ceiling.
type RedisStore struct {
	client redis.UniversalClient
	clock  clockFunc
}

// redisEnvelope wraps a stored value with the metadata needed to refresh
// sliding windows without losing the absolute ceiling.
type redisEnvelope struct {
	Value []byte `json:"v"`

	// Deadline is the absolute ceiling in Unix milliseconds; zero when the
	// entry only slides.
	Deadline int64 `json:"dl,omitempty"`

	// Sliding is the per-read window in milliseconds.
	Sliding int64 `json:"sl,omitempty"`
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, clock: time.Now}, nil
}

// NewRedisStoreWithClient wraps a pre-configured client. Useful for testing
// with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, clock: time.Now}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Set writes value under key, replacing any previous entry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, opts Options) error {
	now := s.clock()
	deadline := opts.deadline(now)

	env := redisEnvelope{Value: value}
	if !deadline.IsZero() {
		env.Deadline = deadline.UnixMilli()
	}
	if opts.SlidingExpiration > 0 {
		env.Sliding = opts.SlidingExpiration.Milliseconds()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	ttl := ttlUntil(now, effectiveExpiry(now, deadline, opts.SlidingExpiration))
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

// Get returns the live value under key and refreshes sliding windows.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	if env.Sliding > 0 {
		now := s.clock()
		var deadline time.Time
		if env.Deadline > 0 {
			deadline = time.UnixMilli(env.Deadline)
		}
		next := effectiveExpiry(now, deadline, time.Duration(env.Sliding)*time.Millisecond)
		if ttl := ttlUntil(now, next); ttl > 0 {
			// Best effort: a failed refresh only shortens the window.
			_ = s.client.PExpire(ctx, key, ttl).Err()
		}
	}

	return env.Value, nil
}

// Take atomically returns and removes the live value under key. Redis GETDEL
// guarantees at most one caller observes the value.
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume entry: %w", err)
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return env.Value, nil
}

// Remove deletes the entry under key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	return nil
}

func decodeEnvelope(data []byte) (*redisEnvelope, error) {
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &env, nil
}

// ttlUntil converts an expiry instant to a Redis TTL. Zero means no TTL.
func ttlUntil(now, expiry time.Time) time.Duration {
	if expiry.IsZero() {
		return 0
	}
	ttl := expiry.Sub(now)
	if ttl < time.Millisecond {
		// Entry is effectively dead; the shortest TTL Redis accepts removes
		// it almost immediately.
		ttl = time.Millisecond
	}
	return ttl
}
