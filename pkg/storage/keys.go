// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

// DefaultKeyPrefix namespaces this server's entries in a shared backend.
const DefaultKeyPrefix = "authkeel"

// KeyFactory is the single source of truth for storage key construction.
// Every component derives its keys here, so a writer and a reader can never
// disagree on the key for the same logical entry. Identifiers are embedded in
// their unmodified textual form.
type KeyFactory struct {
	prefix string
}

// NewKeyFactory returns a factory using prefix, or DefaultKeyPrefix when
// empty.
func NewKeyFactory(prefix string) KeyFactory {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyFactory{prefix: prefix}
}

// PushedAuthorizationRequest keys a PAR entry by its request URI.
func (f KeyFactory) PushedAuthorizationRequest(requestURI string) string {
	return f.prefix + ":par:" + requestURI
}

// TokenStatus keys a token status entry by jti.
func (f KeyFactory) TokenStatus(jwtID string) string {
	return f.prefix + ":jwt:" + jwtID
}

// Grant keys an authorized grant by its authorization code.
func (f KeyFactory) Grant(code string) string {
	return f.prefix + ":grant:" + code
}
