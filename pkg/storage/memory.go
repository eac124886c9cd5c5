// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often the in-memory store sweeps expired
// entries.
const DefaultCleanupInterval = 5 * time.Minute

// memoryEntry tracks a value with its effective and ceiling expiry times.
type memoryEntry struct {
	value []byte

	// expiresAt is the current effective expiry; sliding reads move it.
	expiresAt time.Time

	// deadline is the absolute ceiling; zero when the entry only slides.
	deadline time.Time

	// sliding is the per-read window; zero for fixed entries.
	sliding time.Duration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with an in-process map. It is safe for
// concurrent use and suitable for single-instance deployments and tests; use
// RedisStore when state must be shared across replicas.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	clock clockFunc

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

type clockFunc func() time.Time

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = interval
	}
}

// WithTimeSource replaces the wall clock. Test use only.
func WithTimeSource(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.clock = now
	}
}

// NewMemoryStore creates a MemoryStore and starts its background sweep.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]*memoryEntry),
		clock:           time.Now,
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Close stops the background sweep and waits for it to finish.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes entries past their effective expiry. Keys are
// collected under the read lock first to keep write lock hold time short.
func (s *MemoryStore) cleanupExpired() {
	now := s.clock()

	s.mu.RLock()
	var expired []string
	for k, e := range s.entries {
		if e.expired(now) {
			expired = append(expired, k)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	for _, k := range expired {
		if e, ok := s.entries[k]; ok && e.expired(s.clock()) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// Set writes value under key, replacing any previous entry.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.clock()
	deadline := opts.deadline(now)

	e := &memoryEntry{
		value:    append([]byte(nil), value...),
		deadline: deadline,
		sliding:  opts.SlidingExpiration,
	}
	e.expiresAt = effectiveExpiry(now, deadline, opts.SlidingExpiration)

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Get returns the live value under key and refreshes sliding windows.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(now) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}

	if e.sliding > 0 {
		e.expiresAt = effectiveExpiry(now, e.deadline, e.sliding)
	}

	return append([]byte(nil), e.value...), nil
}

// Take atomically returns and removes the live value under key.
func (s *MemoryStore) Take(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)
	if e.expired(now) {
		return nil, ErrNotFound
	}

	return e.value, nil
}

// Remove deletes the entry under key.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// effectiveExpiry computes the next expiry instant for an entry with the
// given ceiling and sliding window.
func effectiveExpiry(now, deadline time.Time, sliding time.Duration) time.Time {
	if sliding <= 0 {
		return deadline
	}
	slid := now.Add(sliding)
	if !deadline.IsZero() && slid.After(deadline) {
		return deadline
	}
	return slid
}
