// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Take when no live entry exists under
// the key.
var ErrNotFound = errors.New("storage: entry not found")

// Options selects the expiration policy for a stored entry. Exactly one of
// AbsoluteExpiration or AbsoluteExpirationRelativeToNow should be set;
// SlidingExpiration may accompany either to add a per-read window bounded by
// the absolute deadline.
type Options struct {
	// AbsoluteExpiration is the fixed instant the entry dies at.
	AbsoluteExpiration time.Time

	// AbsoluteExpirationRelativeToNow is the entry lifetime measured from the
	// write.
	AbsoluteExpirationRelativeToNow time.Duration

	// SlidingExpiration, when non-zero, shifts the expiry forward on every
	// read, never past the absolute deadline.
	SlidingExpiration time.Duration
}

// deadline resolves the absolute ceiling, or the zero time when the entry
// only slides.
func (o Options) deadline(now time.Time) time.Time {
	switch {
	case !o.AbsoluteExpiration.IsZero():
		return o.AbsoluteExpiration
	case o.AbsoluteExpirationRelativeToNow > 0:
		return now.Add(o.AbsoluteExpirationRelativeToNow)
	default:
		return time.Time{}
	}
}

// Store is the opaque key/value abstraction the server's transient state
// lives behind. All operations are suspension points and honour context
// cancellation. Implementations are safe for concurrent use.
type Store interface {
	// Set writes value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, opts Options) error

	// Get returns the live value under key, or ErrNotFound. Retrieval is
	// non-destructive; sliding entries have their window refreshed.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take atomically returns and removes the live value under key, or
	// ErrNotFound. At most one caller observes the value.
	Take(ctx context.Context, key string) ([]byte, error)

	// Remove deletes the entry under key. Removing an absent key is not an
	// error.
	Remove(ctx context.Context, key string) error
}

// Serializer converts models to and from their stored representation.
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// JSONSerializer encodes models as JSON. The codec itself is an external
// primitive; this is the single place it is chosen.
type JSONSerializer struct{}

// Serialize marshals v to JSON.
func (JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize unmarshals JSON data into v.
func (JSONSerializer) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
