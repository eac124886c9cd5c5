// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

type registryEntry struct {
	status    oidc.JsonWebTokenStatus
	expiresAt time.Time
}

// fakeRegistry records SetStatus calls and can be told to fail.
type fakeRegistry struct {
	entries map[string]registryEntry
	setErr  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: make(map[string]registryEntry)}
}

func (r *fakeRegistry) GetStatus(_ context.Context, jwtID string) (oidc.JsonWebTokenStatus, error) {
	return r.entries[jwtID].status, nil
}

func (r *fakeRegistry) SetStatus(_ context.Context, jwtID string, status oidc.JsonWebTokenStatus, expiresAt time.Time) error {
	if r.setErr != nil {
		return r.setErr
	}
	r.entries[jwtID] = registryEntry{status: status, expiresAt: expiresAt}
	return nil
}

func newRefreshService(t *testing.T, now time.Time, reg *fakeRegistry) *RefreshTokenService {
	t.Helper()
	return NewRefreshTokenService(
		newTestFormatter(t),
		oidc.StaticIssuer(testIssuer),
		oidc.FixedClock(now),
		&seqIDGenerator{},
		reg,
		slog.Default(),
	)
}

// oldRefreshToken builds the parsed form of a previously issued token.
func oldRefreshToken(jti string, issuedAt, expiresAt time.Time) *josekit.JWT {
	token := josekit.NewJWT(josekit.TypeRefreshToken, "RS256")
	c := token.Claims
	c.SetString(josekit.ClaimJwtID, jti)
	c.SetTime(josekit.ClaimIssuedAt, issuedAt)
	c.SetTime(josekit.ClaimExpiresAt, expiresAt)
	c.SetString(josekit.ClaimSubject, "user-1")
	c.SetString(josekit.ClaimSessionID, "sess-1")
	c.SetString(josekit.ClaimClientID, "client-1")
	c.SetStringSlice(josekit.ClaimScope, []string{"openid", "offline_access"})
	c.SetStringSlice(josekit.ClaimAudience, []string{"client-1"})
	return token
}

func TestCreateRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newRefreshService(t, now, newFakeRegistry())

	authCtx := &oidc.AuthorizationContext{ClientID: "client-1", Scope: []string{"openid", "offline_access"}}
	client := &oidc.ClientInfo{
		ClientID:     "client-1",
		RefreshToken: oidc.RefreshTokenPolicy{AbsoluteExpiresIn: 8 * time.Hour},
	}

	token, err := svc.CreateRefreshToken(context.Background(), testSession(), authCtx, client)
	require.NoError(t, err)

	claims, header := parseToken(t, token.Value)
	assert.Equal(t, "rt+jwt", headerType(t, header))
	assert.Equal(t, testIssuer, claims.String(josekit.ClaimIssuer))
	assert.Equal(t, []string{"client-1"}, claims.Audience())
	assert.Equal(t, "user-1", claims.String(josekit.ClaimSubject))
	assert.Equal(t, "sess-1", claims.String(josekit.ClaimSessionID))
	assert.Equal(t, "client-1", claims.String(josekit.ClaimClientID))
	assert.Equal(t, []string{"openid", "offline_access"}, claims.StringSlice(josekit.ClaimScope))
	assert.Equal(t, now, claimTime(t, claims, josekit.ClaimIssuedAt))
	assert.Equal(t, now.Add(8*time.Hour), claimTime(t, claims, josekit.ClaimExpiresAt))
}

func TestRenewRefreshTokenRotation(t *testing.T) {
	t.Parallel()

	// Old token issued two hours ago against an eight hour ceiling.
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuedAt := now.Add(-2 * time.Hour)
	oldExpiry := now.Add(6 * time.Hour)

	reg := newFakeRegistry()
	svc := newRefreshService(t, now, reg)

	client := &oidc.ClientInfo{
		ClientID:     "client-1",
		RefreshToken: oidc.RefreshTokenPolicy{AbsoluteExpiresIn: 8 * time.Hour},
	}

	token, err := svc.RenewRefreshToken(context.Background(), oldRefreshToken("A", issuedAt, oldExpiry), client)
	require.NoError(t, err)
	require.NotNil(t, token)

	// The rotated-out jti is revoked until its natural expiry.
	assert.Equal(t, oidc.TokenStatusRevoked, reg.entries["A"].status)
	assert.Equal(t, oldExpiry, reg.entries["A"].expiresAt)

	claims, _ := parseToken(t, token.Value)
	assert.Equal(t, issuedAt, claimTime(t, claims, josekit.ClaimIssuedAt), "original iat is preserved")
	assert.Equal(t, now, claimTime(t, claims, josekit.ClaimNotBefore))
	assert.Equal(t, oldExpiry, claimTime(t, claims, josekit.ClaimExpiresAt), "ceiling measured from original iat")
	assert.NotEqual(t, "A", claims.String(josekit.ClaimJwtID))
	assert.Equal(t, "user-1", claims.String(josekit.ClaimSubject))
	assert.Equal(t, []string{"openid", "offline_access"}, claims.StringSlice(josekit.ClaimScope))
}

func TestRenewRefreshTokenSlidingWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sliding := time.Hour

	tests := []struct {
		name     string
		issuedAt time.Time
		want     time.Time
	}{
		{
			name:     "sliding window below the ceiling",
			issuedAt: now.Add(-2 * time.Hour),
			want:     now.Add(time.Hour),
		},
		{
			name:     "ceiling caps the sliding window",
			issuedAt: now.Add(-8*time.Hour + 30*time.Minute),
			want:     now.Add(30 * time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newRefreshService(t, now, newFakeRegistry())
			client := &oidc.ClientInfo{
				ClientID: "client-1",
				RefreshToken: oidc.RefreshTokenPolicy{
					AbsoluteExpiresIn: 8 * time.Hour,
					SlidingExpiresIn:  &sliding,
				},
			}

			token, err := svc.RenewRefreshToken(context.Background(), oldRefreshToken("A", tt.issuedAt, tt.issuedAt.Add(8*time.Hour)), client)
			require.NoError(t, err)
			require.NotNil(t, token)

			claims, _ := parseToken(t, token.Value)
			assert.Equal(t, tt.want, claimTime(t, claims, josekit.ClaimExpiresAt))
		})
	}
}

func TestRenewRefreshTokenPastCeiling(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	svc := newRefreshService(t, now, reg)

	client := &oidc.ClientInfo{
		ClientID:     "client-1",
		RefreshToken: oidc.RefreshTokenPolicy{AbsoluteExpiresIn: 8 * time.Hour},
	}

	issuedAt := now.Add(-9 * time.Hour)
	token, err := svc.RenewRefreshToken(context.Background(), oldRefreshToken("A", issuedAt, issuedAt.Add(8*time.Hour)), client)
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Empty(t, reg.entries, "an expired token is not revoked")
}

func TestRenewRefreshTokenRevocationMustSucceed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	reg.setErr = errors.New("store unavailable")
	svc := newRefreshService(t, now, reg)

	client := &oidc.ClientInfo{
		ClientID:     "client-1",
		RefreshToken: oidc.RefreshTokenPolicy{AbsoluteExpiresIn: 8 * time.Hour},
	}

	token, err := svc.RenewRefreshToken(context.Background(), oldRefreshToken("A", now.Add(-time.Hour), now.Add(7*time.Hour)), client)
	assert.ErrorContains(t, err, "failed to revoke")
	assert.Nil(t, token)
}

func TestRenewRefreshTokenReuseAllowed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := newFakeRegistry()
	svc := newRefreshService(t, now, reg)

	client := &oidc.ClientInfo{
		ClientID: "client-1",
		RefreshToken: oidc.RefreshTokenPolicy{
			AbsoluteExpiresIn: 8 * time.Hour,
			AllowReuse:        true,
		},
	}

	token, err := svc.RenewRefreshToken(context.Background(), oldRefreshToken("A", now.Add(-time.Hour), now.Add(7*time.Hour)), client)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Empty(t, reg.entries, "reuse-tolerant clients keep the old token live")
}

func TestAuthorizeByRefreshToken(t *testing.T) {
	t.Parallel()

	svc := newRefreshService(t, time.Now(), newFakeRegistry())

	raw := "eyJ.raw.token"
	grant, err := svc.AuthorizeByRefreshToken(oldRefreshToken("A", time.Now(), time.Now().Add(time.Hour)), raw)
	require.NoError(t, err)

	assert.Equal(t, "user-1", grant.Session.Subject)
	assert.Equal(t, "sess-1", grant.Session.SessionID)
	assert.Equal(t, "client-1", grant.Context.ClientID)
	assert.Equal(t, []string{"openid", "offline_access"}, grant.Context.Scope)
	assert.Equal(t, raw, grant.RefreshToken)
}

func TestRenewRefreshTokenWrongType(t *testing.T) {
	t.Parallel()

	svc := newRefreshService(t, time.Now(), newFakeRegistry())
	_, err := svc.RenewRefreshToken(context.Background(), josekit.NewJWT(josekit.TypeAccessToken, "RS256"), &oidc.ClientInfo{})
	assert.ErrorContains(t, err, "not a refresh token")
}
