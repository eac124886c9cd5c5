// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

func newAccessService(t *testing.T, now time.Time) *AccessTokenService {
	t.Helper()
	return NewAccessTokenService(
		newTestFormatter(t),
		oidc.StaticIssuer(testIssuer),
		oidc.FixedClock(now),
		&seqIDGenerator{},
	)
}

func TestCreateAccessToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAccessService(t, now)

	session := testSession()
	session.AdditionalClaims = map[string]any{
		"tenant": "acme",
		"sub":    "spoofed", // reserved, must not override
	}
	authCtx := &oidc.AuthorizationContext{
		ClientID:  "client-1",
		Scope:     []string{"openid", "profile"},
		Resources: []string{"https://api.example.com"},
	}
	client := &oidc.ClientInfo{ClientID: "client-1", AccessTokenExpiresIn: 30 * time.Minute}

	token, err := svc.CreateAccessToken(context.Background(), session, authCtx, client)
	require.NoError(t, err)
	require.NotNil(t, token)

	claims, header := parseToken(t, token.Value)
	assert.Equal(t, "at+jwt", headerType(t, header))
	assert.Equal(t, testIssuer, claims.String(josekit.ClaimIssuer))
	assert.Equal(t, "user-1", claims.String(josekit.ClaimSubject))
	assert.Equal(t, "sess-1", claims.String(josekit.ClaimSessionID))
	assert.Equal(t, "corp-idp", claims.String(josekit.ClaimIdentityProvider))
	assert.Equal(t, "client-1", claims.String(josekit.ClaimClientID))
	assert.Equal(t, "user@example.com", claims.String(josekit.ClaimEmail))
	assert.Equal(t, true, claims[josekit.ClaimEmailVerified])
	assert.Equal(t, []string{"openid", "profile"}, claims.StringSlice(josekit.ClaimScope))
	assert.Equal(t, []string{"https://api.example.com"}, claims.Audience())
	assert.Equal(t, "acme", claims.String("tenant"))
	assert.Equal(t, "id-1", claims.String(josekit.ClaimJwtID))
	assert.Equal(t, token.ID, claims.String(josekit.ClaimJwtID))

	assert.Equal(t, now, claimTime(t, claims, josekit.ClaimIssuedAt))
	assert.Equal(t, now, claimTime(t, claims, josekit.ClaimNotBefore))
	assert.Equal(t, now.Add(30*time.Minute), claimTime(t, claims, josekit.ClaimExpiresAt))
	assert.Equal(t, session.AuthenticationTime, claimTime(t, claims, josekit.ClaimAuthTime))
	assert.Equal(t, now.Add(30*time.Minute), token.ExpiresAt)
}

func TestCreateAccessTokenSelfAudience(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newAccessService(t, now)

	authCtx := &oidc.AuthorizationContext{ClientID: "client-1", Scope: []string{"openid"}}
	client := &oidc.ClientInfo{ClientID: "client-1"}

	token, err := svc.CreateAccessToken(context.Background(), testSession(), authCtx, client)
	require.NoError(t, err)

	claims, _ := parseToken(t, token.Value)
	assert.Equal(t, []string{"client-1"}, claims.Audience())
	// Zero lifetime falls back to the default.
	assert.Equal(t, now.Add(DefaultAccessTokenLifetime), claimTime(t, claims, josekit.ClaimExpiresAt))
}

func TestAuthenticateByAccessToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		audience      []string
		wantResources []string
	}{
		{
			name:          "resource audience",
			audience:      []string{"https://api.example.com", "https://other.example.com"},
			wantResources: []string{"https://api.example.com", "https://other.example.com"},
		},
		{
			name:          "self audience means no resources",
			audience:      []string{"client-1"},
			wantResources: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token := josekit.NewJWT(josekit.TypeAccessToken, "RS256")
			c := token.Claims
			c.SetString(josekit.ClaimSubject, "user-1")
			c.SetString(josekit.ClaimSessionID, "sess-1")
			c.SetString(josekit.ClaimIdentityProvider, "corp-idp")
			c.SetString(josekit.ClaimEmail, "user@example.com")
			c[josekit.ClaimEmailVerified] = true
			c.SetTime(josekit.ClaimAuthTime, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
			c.SetString(josekit.ClaimClientID, "client-1")
			c.SetStringSlice(josekit.ClaimScope, []string{"openid", "api"})
			c.SetStringSlice(josekit.ClaimAudience, tt.audience)
			c["tenant"] = "acme"

			svc := newAccessService(t, time.Now())
			session, authCtx, err := svc.AuthenticateByAccessToken(token)
			require.NoError(t, err)

			assert.Equal(t, "user-1", session.Subject)
			assert.Equal(t, "sess-1", session.SessionID)
			assert.Equal(t, "corp-idp", session.IdentityProvider)
			assert.Equal(t, "user@example.com", session.Email)
			require.NotNil(t, session.EmailVerified)
			assert.True(t, *session.EmailVerified)
			assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), session.AuthenticationTime)
			assert.Equal(t, "acme", session.AdditionalClaims["tenant"])

			assert.Equal(t, "client-1", authCtx.ClientID)
			assert.Equal(t, []string{"openid", "api"}, authCtx.Scope)
			assert.Equal(t, tt.wantResources, authCtx.Resources)
		})
	}
}

func TestAuthenticateByAccessTokenWrongType(t *testing.T) {
	t.Parallel()

	svc := newAccessService(t, time.Now())
	_, _, err := svc.AuthenticateByAccessToken(josekit.NewJWT(josekit.TypeRefreshToken, "RS256"))
	assert.ErrorContains(t, err, "not an access token")
}
