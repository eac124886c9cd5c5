// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	jose "github.com/go-jose/go-jose/v4"
)

// LoadSigningKey loads a private key from a PEM file. Supports RSA (PKCS1
// and PKCS8), ECDSA (SEC1 and PKCS8) and Ed25519 (PKCS8) keys.
func LoadSigningKey(keyPath string) (crypto.Signer, error) {
	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from signing key")
	}

	if rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return rsaKey, nil
	}

	if ecKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return ecKey, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("signing key does not implement crypto.Signer")
	}
	return signer, nil
}

// DeriveKeyID computes a key ID from the public key using the RFC 7638 JWK
// thumbprint, base64url encoded without padding.
func DeriveKeyID(key crypto.Signer) (string, error) {
	jwk := jose.JSONWebKey{Key: key.Public()}

	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// DeriveAlgorithm determines the default JWS algorithm for the key type.
func DeriveAlgorithm(key crypto.Signer) (string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return "RS256", nil
	case *ecdsa.PrivateKey:
		return deriveECAlgorithm(k.Curve)
	default:
		return "", fmt.Errorf("unsupported key type: %T", key)
	}
}

func deriveECAlgorithm(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return "ES256", nil
	case elliptic.P384():
		return "ES384", nil
	case elliptic.P521():
		return "ES512", nil
	default:
		return "", fmt.Errorf("unsupported EC curve: %s", curve.Params().Name)
	}
}

// Compatible reports whether the key can sign with alg. RSA keys serve any
// RS* algorithm; EC keys serve only the algorithm paired with their curve.
func Compatible(key crypto.Signer, alg string) bool {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return alg == "RS256" || alg == "RS384" || alg == "RS512"
	case *ecdsa.PrivateKey:
		derived, err := deriveECAlgorithm(k.Curve)
		return err == nil && derived == alg
	default:
		return false
	}
}

// NewSigningKeyData derives the key ID and algorithm for a loaded key,
// validating a configured algorithm against the key type when provided.
func NewSigningKeyData(key crypto.Signer, keyID, algorithm string) (*SigningKeyData, error) {
	if keyID == "" {
		derived, err := DeriveKeyID(key)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key ID: %w", err)
		}
		keyID = derived
	}

	if algorithm == "" {
		derived, err := DeriveAlgorithm(key)
		if err != nil {
			return nil, fmt.Errorf("failed to derive algorithm: %w", err)
		}
		algorithm = derived
	} else if !Compatible(key, algorithm) {
		return nil, fmt.Errorf("algorithm %s is not compatible with key type %T", algorithm, key)
	}

	return &SigningKeyData{KeyID: keyID, Algorithm: algorithm, Key: key}, nil
}
