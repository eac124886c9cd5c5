// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package josekit

import (
	"encoding/json"
	"time"
)

// JOSE typ header values distinguishing the token kinds this server issues.
const (
	TypeAccessToken  = "at+jwt"
	TypeRefreshToken = "rt+jwt"
	TypeIDToken      = "id+jwt"
	TypeLogoutToken  = "logout+jwt"
)

// Registered and server-specific claim names.
const (
	ClaimIssuer           = "iss"
	ClaimSubject          = "sub"
	ClaimAudience         = "aud"
	ClaimExpiresAt        = "exp"
	ClaimNotBefore        = "nbf"
	ClaimIssuedAt         = "iat"
	ClaimJwtID            = "jti"
	ClaimSessionID        = "sid"
	ClaimAuthTime         = "auth_time"
	ClaimIdentityProvider = "idp"
	ClaimClientID         = "client_id"
	ClaimScope            = "scope"
	ClaimNonce            = "nonce"
	ClaimACR              = "acr"
	ClaimAMR              = "amr"
	ClaimEvents           = "events"
	ClaimCodeHash         = "c_hash"
	ClaimAccessHash       = "at_hash"
	ClaimEmail            = "email"
	ClaimEmailVerified    = "email_verified"
)

// BackChannelLogoutEvent is the member name required inside the events claim
// of a logout token.
const BackChannelLogoutEvent = "http://schemas.openid.net/event/backchannel-logout"

// Header is the protected JOSE header of a token under construction.
type Header struct {
	// Type is the typ header value (e.g. "at+jwt").
	Type string

	// Algorithm is the JWS alg the token must be signed with.
	Algorithm string
}

// Claims is the token payload. Keys are claim names; values must be
// JSON-serializable. Accessors tolerate the numeric representations JSON
// decoding produces.
type Claims map[string]any

// JWT is a token under construction or a parsed token.
type JWT struct {
	Header Header
	Claims Claims
}

// NewJWT starts a token of the given typ and signing algorithm.
func NewJWT(typ, alg string) *JWT {
	return &JWT{
		Header: Header{Type: typ, Algorithm: alg},
		Claims: make(Claims),
	}
}

// SetString stores a string claim, skipping empty values.
func (c Claims) SetString(name, value string) {
	if value != "" {
		c[name] = value
	}
}

// SetTime stores a claim as seconds since the epoch.
func (c Claims) SetTime(name string, t time.Time) {
	if !t.IsZero() {
		c[name] = t.Unix()
	}
}

// SetStringSlice stores a string array claim, skipping empty slices.
func (c Claims) SetStringSlice(name string, values []string) {
	if len(values) > 0 {
		c[name] = values
	}
}

// String returns a string claim, or empty when absent or differently typed.
func (c Claims) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Time returns a numeric-date claim.
func (c Claims) Time(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case int64:
		return time.Unix(v, 0).UTC(), true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

// StringSlice returns an array-of-strings claim. A bare string counts as a
// single-element array, matching how aud is encoded on the wire.
func (c Claims) StringSlice(name string) []string {
	switch v := c[name].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Audience returns the aud claim.
func (c Claims) Audience() []string {
	return c.StringSlice(ClaimAudience)
}

// Has reports whether the claim is present at all.
func (c Claims) Has(name string) bool {
	_, ok := c[name]
	return ok
}
