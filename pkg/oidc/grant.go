// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import "time"

// AuthorizationContext is the validated authorization snapshot bound into a
// code or refresh token grant.
type AuthorizationContext struct {
	// ClientID is the client the grant was issued to.
	ClientID string

	// Scope is the granted scope, in request order.
	Scope []string

	// RequestedClaims carries the claims parameter forward to token issuance.
	RequestedClaims *RequestedClaims

	// RedirectURI is the validated redirect URI the grant was delivered to.
	RedirectURI string

	// Nonce is echoed into ID tokens issued from this grant.
	Nonce string

	// CodeChallenge and CodeChallengeMethod bind the grant to the PKCE
	// verifier presented at token exchange.
	CodeChallenge       string
	CodeChallengeMethod string

	// Resources are the granted resource indicators.
	Resources []string

	// X509Thumbprint binds the grant to a client certificate (RFC 8705).
	X509Thumbprint string
}

// TokenInfo records a single token issued under a grant.
type TokenInfo struct {
	// JwtID is the jti claim of the issued token.
	JwtID string

	// ExpiresAt is the token's absolute expiry.
	ExpiresAt time.Time
}

// AuthorizedGrant couples the authenticated session with the authorization
// snapshot. It is what an authorization code or refresh token dereferences to
// at the token endpoint.
type AuthorizedGrant struct {
	Session *AuthSession
	Context *AuthorizationContext

	// RefreshToken is the raw refresh token the grant was reconstructed from,
	// when applicable.
	RefreshToken string

	// IssuedTokens lists tokens already issued under this grant.
	IssuedTokens []TokenInfo
}

// JsonWebTokenStatus is the recorded lifecycle state of a jti.
type JsonWebTokenStatus int

// Token status values. TokenStatusUnknown is the zero value and means no
// explicit state was ever recorded.
const (
	TokenStatusUnknown JsonWebTokenStatus = iota
	TokenStatusUsed
	TokenStatusRevoked
)

// String returns the status name for logs.
func (s JsonWebTokenStatus) String() string {
	switch s {
	case TokenStatusUsed:
		return "used"
	case TokenStatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}
