// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package josekit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// defaultContentEncryption is the JWE enc applied when a token is encrypted
// to a client.
const defaultContentEncryption = jose.A128CBC_HS256

// Formatter turns a token under construction into its compact wire form.
type Formatter interface {
	// FormatAndSign signs the token with a service key matching its header
	// algorithm. When the receiving client registered encryption keys and a
	// key management algorithm, the result is additionally JWE-encrypted;
	// otherwise the JWS compact string is returned as is.
	FormatAndSign(ctx context.Context, token *JWT, client *oidc.ClientInfo) (string, error)
}

// ClientKeyResolver is the slice of the key layer the formatter needs.
type ClientKeyResolver interface {
	EncryptionKey(ctx context.Context, client *oidc.ClientInfo, alg string) (*jose.JSONWebKey, error)
}

// ServiceFormatter signs with the server's service keys.
type ServiceFormatter struct {
	keys       keys.KeyResolver
	clientKeys ClientKeyResolver
	logger     *slog.Logger
}

// NewServiceFormatter builds a formatter. clientKeys may be nil when token
// encryption is not supported by the deployment.
func NewServiceFormatter(resolver keys.KeyResolver, clientKeys ClientKeyResolver, logger *slog.Logger) *ServiceFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceFormatter{keys: resolver, clientKeys: clientKeys, logger: logger}
}

// FormatAndSign implements Formatter.
func (f *ServiceFormatter) FormatAndSign(ctx context.Context, token *JWT, client *oidc.ClientInfo) (string, error) {
	key, err := f.keys.SigningKeyFor(ctx, token.Header.Algorithm)
	if err != nil {
		return "", fmt.Errorf("cannot sign %s token: %w", token.Header.Type, err)
	}

	payload, err := json.Marshal(token.Claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}

	opts := (&jose.SignerOptions{}).WithType(jose.ContentType(token.Header.Type))
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(key.Algorithm),
		Key:       jose.JSONWebKey{Key: key.Key, KeyID: key.KeyID},
	}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize token: %w", err)
	}

	return f.maybeEncrypt(ctx, compact, token, client)
}

// maybeEncrypt wraps the signed token in a JWE when the client is set up
// for encrypted responses.
func (f *ServiceFormatter) maybeEncrypt(ctx context.Context, compact string, token *JWT, client *oidc.ClientInfo) (string, error) {
	if client == nil || client.KeyManagementAlgorithm == "" || f.clientKeys == nil {
		return compact, nil
	}

	encKey, err := f.clientKeys.EncryptionKey(ctx, client, client.KeyManagementAlgorithm)
	if err != nil {
		return "", fmt.Errorf("failed to resolve encryption key: %w", err)
	}
	if encKey == nil {
		// Key management algorithm configured but no usable key registered;
		// deliver the plain JWS rather than fail issuance.
		f.logger.Warn("client configured for encryption but has no encryption key",
			"client_id", client.ClientID,
			"alg", client.KeyManagementAlgorithm,
		)
		return compact, nil
	}

	encOpts := (&jose.EncrypterOptions{}).
		WithType(jose.ContentType(token.Header.Type)).
		WithContentType("JWT")
	encrypter, err := jose.NewEncrypter(defaultContentEncryption, jose.Recipient{
		Algorithm: jose.KeyAlgorithm(client.KeyManagementAlgorithm),
		Key:       encKey,
	}, encOpts)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypter: %w", err)
	}

	jwe, err := encrypter.Encrypt([]byte(compact))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}

	out, err := jwe.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize encrypted token: %w", err)
	}
	return out, nil
}
