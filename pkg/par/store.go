// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package par stores pushed authorization requests (RFC 9126). A client
// pre-submits its authorization parameters and receives a request_uri that
// the authorization endpoint later dereferences, at most once.
package par

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/storage"
)

// RequestURIPrefix is the URN namespace for generated request URIs.
const RequestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// DefaultTTL bounds how long a pushed request stays consumable when the
// client or server configuration does not say otherwise.
const DefaultTTL = 10 * time.Minute

// RequestStore persists pushed authorization requests.
type RequestStore interface {
	// Store persists the request for ttl and mints its request URI.
	Store(ctx context.Context, request *oidc.AuthorizationRequest, ttl time.Duration) (*oidc.PushedAuthorizationResponse, error)

	// TryGet dereferences a request URI. With shouldRemove the entry is
	// consumed atomically: the second caller observes nil. A nil request
	// with a nil error means the URI is unknown or expired.
	TryGet(ctx context.Context, requestURI string, shouldRemove bool) (*oidc.AuthorizationRequest, error)
}

// StorageRequestStore implements RequestStore on the shared KV store. Keys
// are derived from the request URI's unmodified textual form, through the
// same factory for Store and TryGet.
type StorageRequestStore struct {
	store      storage.Store
	keys       storage.KeyFactory
	serializer storage.Serializer
	idGen      oidc.IDGenerator
}

// NewStorageRequestStore wires a PAR store onto the given KV store.
func NewStorageRequestStore(store storage.Store, keys storage.KeyFactory, serializer storage.Serializer, idGen oidc.IDGenerator) *StorageRequestStore {
	return &StorageRequestStore{store: store, keys: keys, serializer: serializer, idGen: idGen}
}

// Store persists the request under a fresh request URI for ttl.
func (s *StorageRequestStore) Store(ctx context.Context, request *oidc.AuthorizationRequest, ttl time.Duration) (*oidc.PushedAuthorizationResponse, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := s.serializer.Serialize(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pushed request: %w", err)
	}

	requestURI := RequestURIPrefix + s.idGen.NewID()
	opts := storage.Options{AbsoluteExpirationRelativeToNow: ttl}
	if err := s.store.Set(ctx, s.keys.PushedAuthorizationRequest(requestURI), data, opts); err != nil {
		return nil, fmt.Errorf("failed to store pushed request: %w", err)
	}

	return &oidc.PushedAuthorizationResponse{
		RequestURI: requestURI,
		Model:      request,
		ExpiresIn:  ttl,
	}, nil
}

// TryGet dereferences a request URI, optionally consuming it.
func (s *StorageRequestStore) TryGet(ctx context.Context, requestURI string, shouldRemove bool) (*oidc.AuthorizationRequest, error) {
	key := s.keys.PushedAuthorizationRequest(requestURI)

	var (
		data []byte
		err  error
	)
	if shouldRemove {
		data, err = s.store.Take(ctx, key)
	} else {
		data, err = s.store.Get(ctx, key)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pushed request: %w", err)
	}

	var request oidc.AuthorizationRequest
	if err := s.serializer.Deserialize(data, &request); err != nil {
		return nil, fmt.Errorf("failed to decode pushed request: %w", err)
	}
	return &request, nil
}
