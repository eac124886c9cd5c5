// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// jwksRegistrationTimeout bounds the first fetch of a client's hosted JWKS.
const jwksRegistrationTimeout = 5 * time.Second

// ClientKeyResolver resolves the public keys of registered clients, merging
// statically registered JWKS documents with keys fetched from the client's
// jwks_uri. Remote sets are cached and refreshed by a jwk.Cache.
type ClientKeyResolver struct {
	cache *jwk.Cache

	// Registration with the cache happens lazily on first use per URI, so
	// an unreachable client endpoint cannot fail construction.
	mu         sync.Mutex
	registered map[string]error
}

// NewClientKeyResolver builds a resolver with a caching JWKS fetcher. The
// ctx bounds the cache's background refresh loop.
func NewClientKeyResolver(ctx context.Context, httpClient *http.Client) (*ClientKeyResolver, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(httpClient)))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	return &ClientKeyResolver{
		cache:      cache,
		registered: make(map[string]error),
	}, nil
}

// SigningKeys returns the keys usable to verify JWTs issued by the client.
// A client with no registered or fetchable keys yields an empty set.
func (r *ClientKeyResolver) SigningKeys(ctx context.Context, client *oidc.ClientInfo) (*jose.JSONWebKeySet, error) {
	set := &jose.JSONWebKeySet{}
	if client == nil {
		return set, nil
	}

	if client.Jwks != nil {
		for _, k := range client.Jwks.Keys {
			if k.Use == "" || k.Use == "sig" {
				set.Keys = append(set.Keys, k)
			}
		}
	}

	if client.JwksURI != "" {
		remote, err := r.fetch(ctx, client.JwksURI)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch jwks_uri for client %s: %w", client.ClientID, err)
		}
		for _, k := range remote.Keys {
			if k.Use == "" || k.Use == "sig" {
				set.Keys = append(set.Keys, k)
			}
		}
	}

	return set, nil
}

// EncryptionKey returns a client key usable for JWE encryption with the
// given key management algorithm, or nil when the client has none.
func (r *ClientKeyResolver) EncryptionKey(ctx context.Context, client *oidc.ClientInfo, alg string) (*jose.JSONWebKey, error) {
	if client == nil {
		return nil, nil
	}

	candidates := func(keys []jose.JSONWebKey) *jose.JSONWebKey {
		for i := range keys {
			k := &keys[i]
			if k.Use != "enc" {
				continue
			}
			if k.Algorithm == "" || k.Algorithm == alg {
				return k
			}
		}
		return nil
	}

	if client.Jwks != nil {
		if k := candidates(client.Jwks.Keys); k != nil {
			return k, nil
		}
	}

	if client.JwksURI != "" {
		remote, err := r.fetch(ctx, client.JwksURI)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch jwks_uri for client %s: %w", client.ClientID, err)
		}
		if k := candidates(remote.Keys); k != nil {
			return k, nil
		}
	}

	return nil, nil
}

// fetch looks a remote key set up through the cache, registering the URI on
// first use, and converts it to its go-jose representation.
func (r *ClientKeyResolver) fetch(ctx context.Context, uri string) (*jose.JSONWebKeySet, error) {
	if err := r.ensureRegistered(ctx, uri); err != nil {
		return nil, err
	}

	keySet, err := r.cache.Lookup(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("JWKS lookup failed: %w", err)
	}

	// Both libraries speak RFC 7517 JSON; round-trip through it to hand the
	// set to go-jose.
	raw, err := json.Marshal(keySet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key set: %w", err)
	}
	var joseSet jose.JSONWebKeySet
	if err := json.Unmarshal(raw, &joseSet); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	return &joseSet, nil
}

func (r *ClientKeyResolver) ensureRegistered(ctx context.Context, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.registered[uri]; ok {
		return err
	}

	regCtx, cancel := context.WithTimeout(ctx, jwksRegistrationTimeout)
	defer cancel()

	err := r.cache.Register(regCtx, uri)
	if err != nil {
		err = fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	r.registered[uri] = err
	return err
}
