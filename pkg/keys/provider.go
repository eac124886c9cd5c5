// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"path/filepath"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// StaticResolver serves a fixed set of service keys loaded at construction.
// Key changes require a restart.
type StaticResolver struct {
	keys []*SigningKeyData
}

// NewStaticResolver wraps pre-built keys.
func NewStaticResolver(keys ...*SigningKeyData) *StaticResolver {
	return &StaticResolver{keys: keys}
}

// FileConfig locates service keys on disk.
type FileConfig struct {
	// KeyDir is the directory holding the PEM files.
	KeyDir string

	// KeyFiles are the PEM files to load. The first key compatible with a
	// requested algorithm signs; all keys are published for verification.
	KeyFiles []string
}

// NewFileResolver loads service keys from PEM files. All keys are validated
// at load time.
func NewFileResolver(cfg FileConfig) (*StaticResolver, error) {
	if len(cfg.KeyFiles) == 0 {
		return nil, fmt.Errorf("at least one key file is required")
	}

	keys := make([]*SigningKeyData, 0, len(cfg.KeyFiles))
	for _, filename := range cfg.KeyFiles {
		signer, err := LoadSigningKey(filepath.Join(cfg.KeyDir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load key %s: %w", filename, err)
		}

		key, err := NewSigningKeyData(signer, "", "")
		if err != nil {
			return nil, fmt.Errorf("failed to derive parameters for %s: %w", filename, err)
		}
		key.CreatedAt = time.Now()
		keys = append(keys, key)
	}

	return &StaticResolver{keys: keys}, nil
}

// NewEphemeralResolver generates in-memory RSA-2048 and P-256 keys covering
// the RS* and ES256 algorithm families. Tokens do not survive a restart;
// intended for development and tests.
func NewEphemeralResolver() (*StaticResolver, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}

	rsaData, err := NewSigningKeyData(rsaKey, "", "")
	if err != nil {
		return nil, err
	}
	ecData, err := NewSigningKeyData(ecKey, "", "")
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rsaData.CreatedAt = now
	ecData.CreatedAt = now

	return &StaticResolver{keys: []*SigningKeyData{rsaData, ecData}}, nil
}

// SigningKeyFor returns a key able to sign with alg. An exact algorithm
// match wins; otherwise the first key whose type can serve alg is adopted
// (an RSA key registered for RS256 also signs RS384 and RS512).
func (r *StaticResolver) SigningKeyFor(_ context.Context, alg string) (*SigningKeyData, error) {
	for _, k := range r.keys {
		if k.Algorithm == alg {
			return k, nil
		}
	}
	for _, k := range r.keys {
		if Compatible(k.Key, alg) {
			// Same key material, reannounced under the requested algorithm.
			return &SigningKeyData{
				KeyID:     k.KeyID,
				Algorithm: alg,
				Key:       k.Key,
				CreatedAt: k.CreatedAt,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w for algorithm %s", ErrNoSigningKey, alg)
}

// PublicKeys returns the public portion of every loaded key.
func (r *StaticResolver) PublicKeys(_ context.Context) ([]*PublicKeyData, error) {
	pub := make([]*PublicKeyData, 0, len(r.keys))
	for _, k := range r.keys {
		pub = append(pub, &PublicKeyData{
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			PublicKey: k.Key.Public(),
		})
	}
	return pub, nil
}

// PublicJWKS renders the resolver's public keys as a JWKS document for the
// discovery endpoint.
func PublicJWKS(ctx context.Context, resolver KeyResolver) (*jose.JSONWebKeySet, error) {
	pub, err := resolver.PublicKeys(ctx)
	if err != nil {
		return nil, err
	}

	set := &jose.JSONWebKeySet{}
	for _, k := range pub {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Key:       k.PublicKey,
			Use:       "sig",
		})
	}
	return set, nil
}
