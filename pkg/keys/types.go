// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package keys manages the signing keys of the authorization server and
// resolves the published keys of registered clients. Service keys sign every
// issued token; client keys verify client assertions and request objects and
// encrypt tokens addressed to a client.
package keys

import (
	"context"
	"crypto"
	"errors"
	"time"
)

// ErrNoSigningKey is returned when no service key can serve the requested
// algorithm. Token creation must fail in that case.
var ErrNoSigningKey = errors.New("keys: no signing key available")

// SigningKeyData is a service signing key with its metadata. It carries
// private key material and must not leave the process.
type SigningKeyData struct {
	// KeyID is the unique identifier for this key (RFC 7638 thumbprint
	// unless configured), stamped into the JWS kid header.
	KeyID string

	// Algorithm is the JWS algorithm this key signs with (e.g. "RS256").
	Algorithm string

	// Key is the private key.
	Key crypto.Signer

	// CreatedAt is when this key was generated or loaded.
	CreatedAt time.Time
}

// PublicKeyData is the public portion of a service key, safe to expose via
// the JWKS endpoint.
type PublicKeyData struct {
	KeyID     string
	Algorithm string
	PublicKey crypto.PublicKey
}

// KeyResolver selects the service key for a token's signing algorithm.
type KeyResolver interface {
	// SigningKeyFor returns a key able to sign with alg, preferring an exact
	// algorithm match. Returns ErrNoSigningKey when none qualifies.
	SigningKeyFor(ctx context.Context, alg string) (*SigningKeyData, error)

	// PublicKeys returns all public keys for JWKS publication. Multiple keys
	// may coexist during rotation.
	PublicKeys(ctx context.Context) ([]*PublicKeyData, error)
}
