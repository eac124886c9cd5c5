// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package grants persists authorization code grants between the
// authorization endpoint and the token endpoint.
package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/storage"
)

// DefaultCodeTTL bounds how long an authorization code may stay unredeemed.
const DefaultCodeTTL = 5 * time.Minute

// GrantStore persists authorized grants keyed by authorization code.
type GrantStore interface {
	// Store persists the grant and returns the authorization code minted for
	// it.
	Store(ctx context.Context, grant *oidc.AuthorizedGrant, ttl time.Duration) (string, error)

	// Consume redeems a code. The grant is removed so a second redemption
	// returns nil. A nil grant with a nil error means the code is unknown or
	// expired.
	Consume(ctx context.Context, code string) (*oidc.AuthorizedGrant, error)
}

// StorageGrantStore is a GrantStore over the shared key/value store.
type StorageGrantStore struct {
	store      storage.Store
	keys       storage.KeyFactory
	serializer storage.Serializer
	idGen      oidc.IDGenerator
}

// NewStorageGrantStore wires a grant store.
func NewStorageGrantStore(store storage.Store, keys storage.KeyFactory, serializer storage.Serializer, idGen oidc.IDGenerator) *StorageGrantStore {
	return &StorageGrantStore{store: store, keys: keys, serializer: serializer, idGen: idGen}
}

// Store persists the grant under a freshly minted code.
func (s *StorageGrantStore) Store(ctx context.Context, grant *oidc.AuthorizedGrant, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}

	code := s.idGen.NewID()
	payload, err := s.serializer.Serialize(grant)
	if err != nil {
		return "", fmt.Errorf("failed to serialize grant: %w", err)
	}

	err = s.store.Set(ctx, s.keys.Grant(code), payload, storage.Options{
		AbsoluteExpirationRelativeToNow: ttl,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist grant: %w", err)
	}
	return code, nil
}

// Consume redeems and removes the grant stored under code.
func (s *StorageGrantStore) Consume(ctx context.Context, code string) (*oidc.AuthorizedGrant, error) {
	payload, err := s.store.Take(ctx, s.keys.Grant(code))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read grant: %w", err)
	}

	var grant oidc.AuthorizedGrant
	if err := s.serializer.Deserialize(payload, &grant); err != nil {
		return nil, fmt.Errorf("failed to deserialize grant: %w", err)
	}
	return &grant, nil
}
