// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package josekit

import (
	"context"
	"slices"
	"sync"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ClientSigningKeyResolver resolves the verification keys a client
// registered.
type ClientSigningKeyResolver interface {
	SigningKeys(ctx context.Context, client *oidc.ClientInfo) (*jose.JSONWebKeySet, error)
}

// ClientJwtValidator validates JWTs issued by clients: client assertions and
// JAR request objects. It binds three checks into the generic validator:
//
//   - the audience must contain the URI of the endpoint being called;
//   - the issuer must be a registered client_id;
//   - the signature must verify against the keys that client registered.
//
// The resolved client is cached on first success. One instance serves one
// client: validating a token from a different issuer afterwards is a bug in
// the calling code and panics.
type ClientJwtValidator struct {
	requestURI string
	clients    oidc.ClientInfoProvider
	clientKeys ClientSigningKeyResolver
	validator  *TokenValidator

	mu     sync.Mutex
	client *oidc.ClientInfo
}

// NewClientJwtValidator builds a validator for tokens addressed to
// requestURI, the absolute URI of the endpoint being invoked. A nil clock
// uses the system clock.
func NewClientJwtValidator(requestURI string, clients oidc.ClientInfoProvider, clientKeys ClientSigningKeyResolver, clock oidc.Clock) *ClientJwtValidator {
	v := &ClientJwtValidator{
		requestURI: requestURI,
		clients:    clients,
		clientKeys: clientKeys,
	}
	v.validator = NewTokenValidator(ValidationParameters{
		Options:           ValidateAll,
		ValidateIssuer:    v.validateIssuer,
		ValidateAudience:  v.validateAudience,
		ResolveIssuerKeys: v.resolveIssuerKeys,
		Clock:             clock,
	})
	return v
}

// Validate checks the raw token and returns it parsed.
func (v *ClientJwtValidator) Validate(ctx context.Context, raw string) (*JWT, error) {
	return v.validator.Validate(ctx, raw)
}

// Client returns the client resolved by the last successful validation, or
// nil when none succeeded yet.
func (v *ClientJwtValidator) Client() *oidc.ClientInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.client
}

func (v *ClientJwtValidator) validateAudience(_ context.Context, audiences []string) (bool, error) {
	return slices.Contains(audiences, v.requestURI), nil
}

func (v *ClientJwtValidator) validateIssuer(ctx context.Context, issuer string) (bool, error) {
	if issuer == "" {
		return false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.client != nil {
		if v.client.ClientID != issuer {
			panic("josekit: ClientJwtValidator reused for a different issuer")
		}
		return true, nil
	}

	client, err := v.clients.TryGetClient(ctx, issuer)
	if err != nil {
		return false, err
	}
	if client == nil {
		return false, nil
	}
	v.client = client
	return true, nil
}

func (v *ClientJwtValidator) resolveIssuerKeys(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error) {
	v.mu.Lock()
	client := v.client
	v.mu.Unlock()

	if client == nil || client.ClientID != issuer {
		// Unknown clients have no keys; signature validation fails.
		return &jose.JSONWebKeySet{}, nil
	}
	return v.clientKeys.SigningKeys(ctx, client)
}
