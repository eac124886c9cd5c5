// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks the lifecycle status of issued JWTs by their jti
// claim. It backs refresh token rotation (revoking predecessors) and replay
// prevention for single-use tokens.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/storage"
)

// TokenRegistry records and retrieves the status of a JWT by jti.
type TokenRegistry interface {
	// GetStatus returns the recorded status for the jti.
	// TokenStatusUnknown is returned for a jti that was never recorded.
	// Retrieval is non-destructive.
	GetStatus(ctx context.Context, jwtID string) (oidc.JsonWebTokenStatus, error)

	// SetStatus records the status for the jti until expiresAt, the token's
	// own expiry. A later write for the same jti overwrites.
	SetStatus(ctx context.Context, jwtID string, status oidc.JsonWebTokenStatus, expiresAt time.Time) error
}

// StorageTokenRegistry implements TokenRegistry on the shared KV store.
// Entries expire absolutely at the token's own exp: a status must never
// outlive the token it describes, and reads never refresh it.
type StorageTokenRegistry struct {
	store      storage.Store
	keys       storage.KeyFactory
	serializer storage.Serializer
}

// NewStorageTokenRegistry wires a registry onto the given store.
func NewStorageTokenRegistry(store storage.Store, keys storage.KeyFactory, serializer storage.Serializer) *StorageTokenRegistry {
	return &StorageTokenRegistry{store: store, keys: keys, serializer: serializer}
}

// GetStatus returns the recorded status for the jti, defaulting to
// TokenStatusUnknown when nothing was recorded or the entry expired.
func (r *StorageTokenRegistry) GetStatus(ctx context.Context, jwtID string) (oidc.JsonWebTokenStatus, error) {
	data, err := r.store.Get(ctx, r.keys.TokenStatus(jwtID))
	if errors.Is(err, storage.ErrNotFound) {
		return oidc.TokenStatusUnknown, nil
	}
	if err != nil {
		return oidc.TokenStatusUnknown, fmt.Errorf("failed to read token status: %w", err)
	}

	var status oidc.JsonWebTokenStatus
	if err := r.serializer.Deserialize(data, &status); err != nil {
		return oidc.TokenStatusUnknown, fmt.Errorf("failed to decode token status: %w", err)
	}
	return status, nil
}

// SetStatus records the status for the jti with an absolute expiration at
// the token's own exp.
func (r *StorageTokenRegistry) SetStatus(ctx context.Context, jwtID string, status oidc.JsonWebTokenStatus, expiresAt time.Time) error {
	data, err := r.serializer.Serialize(status)
	if err != nil {
		return fmt.Errorf("failed to encode token status: %w", err)
	}

	opts := storage.Options{AbsoluteExpiration: expiresAt}
	if err := r.store.Set(ctx, r.keys.TokenStatus(jwtID), data, opts); err != nil {
		return fmt.Errorf("failed to store token status: %w", err)
	}
	return nil
}
