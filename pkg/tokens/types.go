// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"time"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// DefaultSigningAlgorithm signs tokens for clients that did not configure
// one.
const DefaultSigningAlgorithm = "RS256"

// Default lifetimes applied when client registration leaves them zero.
const (
	DefaultAccessTokenLifetime   = time.Hour
	DefaultIdentityTokenLifetime = time.Hour
	DefaultRefreshTokenLifetime  = 7 * 24 * time.Hour
	DefaultLogoutTokenLifetime   = 5 * time.Minute
)

// Token is an issued token: its compact wire form plus the identity needed
// to track it.
type Token struct {
	// Value is the compact JWS (or JWE) string.
	Value string

	// ID is the token's jti claim.
	ID string

	// ExpiresAt is the token's exp claim.
	ExpiresAt time.Time
}

// Info returns the tracking record for the grant's issued-tokens list.
func (t *Token) Info() oidc.TokenInfo {
	return oidc.TokenInfo{JwtID: t.ID, ExpiresAt: t.ExpiresAt}
}

// UserClaimsProvider supplies end-user claims for identity tokens. It is an
// external collaborator: the implementation owns the user store and the
// release policy.
type UserClaimsProvider interface {
	// GetUserClaims returns the claims released for the session under the
	// given scopes and explicitly requested claims. A nil map means the user
	// is unknown or access was denied; the identity token is then withheld.
	GetUserClaims(ctx context.Context, session *oidc.AuthSession, scopes []string, requested map[string]*oidc.ClaimDetails, client *oidc.ClientInfo) (josekit.Claims, error)
}

// orDefault falls back when a registered lifetime is zero.
func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
