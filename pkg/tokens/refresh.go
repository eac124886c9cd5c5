// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/registry"
)

// RefreshTokenService issues rt+jwt refresh tokens and rotates them under
// the client's expiration and reuse policy.
type RefreshTokenService struct {
	formatter josekit.Formatter
	issuer    oidc.IssuerProvider
	clock     oidc.Clock
	idGen     oidc.IDGenerator
	registry  registry.TokenRegistry
	logger    *slog.Logger
	alg       string
}

// RefreshTokenOption configures the service.
type RefreshTokenOption func(*RefreshTokenService)

// WithRefreshTokenAlgorithm overrides the signing algorithm.
func WithRefreshTokenAlgorithm(alg string) RefreshTokenOption {
	return func(s *RefreshTokenService) {
		s.alg = alg
	}
}

// NewRefreshTokenService wires a refresh token service.
func NewRefreshTokenService(formatter josekit.Formatter, issuer oidc.IssuerProvider, clock oidc.Clock, idGen oidc.IDGenerator, reg registry.TokenRegistry, logger *slog.Logger, opts ...RefreshTokenOption) *RefreshTokenService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RefreshTokenService{
		formatter: formatter,
		issuer:    issuer,
		clock:     clock,
		idGen:     idGen,
		registry:  reg,
		logger:    logger,
		alg:       DefaultSigningAlgorithm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRefreshToken issues a fresh refresh token for the authorized
// session. The expiry is the client's absolute ceiling measured from now.
func (s *RefreshTokenService) CreateRefreshToken(ctx context.Context, session *oidc.AuthSession, authCtx *oidc.AuthorizationContext, client *oidc.ClientInfo) (*Token, error) {
	now := s.clock.Now()
	absolute := orDefault(client.RefreshToken.AbsoluteExpiresIn, DefaultRefreshTokenLifetime)
	return s.issue(ctx, session, authCtx, client, now, now, now.Add(absolute))
}

// RenewRefreshToken rotates a used refresh token. The replacement keeps the
// original iat so the absolute ceiling never moves; with a sliding window
// configured the expiry is the earlier of now+sliding and the ceiling. A nil
// token (no error) means the old token has no lifetime left. When the client
// forbids reuse the old jti is revoked first, and the replacement is issued
// only if that revocation succeeded.
func (s *RefreshTokenService) RenewRefreshToken(ctx context.Context, old *josekit.JWT, client *oidc.ClientInfo) (*Token, error) {
	if old.Header.Type != josekit.TypeRefreshToken {
		return nil, fmt.Errorf("not a refresh token: typ %q", old.Header.Type)
	}
	originalIssuedAt, ok := old.Claims.Time(josekit.ClaimIssuedAt)
	if !ok {
		return nil, fmt.Errorf("refresh token has no iat claim")
	}

	now := s.clock.Now()
	absolute := orDefault(client.RefreshToken.AbsoluteExpiresIn, DefaultRefreshTokenLifetime)
	expiresAt := originalIssuedAt.Add(absolute)
	if sliding := client.RefreshToken.SlidingExpiresIn; sliding != nil {
		if slid := now.Add(*sliding); slid.Before(expiresAt) {
			expiresAt = slid
		}
	}
	if !expiresAt.After(now) {
		s.logger.Debug("refresh token past its absolute ceiling",
			"client_id", client.ClientID, "jti", old.Claims.String(josekit.ClaimJwtID))
		return nil, nil
	}

	if !client.RefreshToken.AllowReuse {
		oldID := old.Claims.String(josekit.ClaimJwtID)
		oldExpiry, _ := old.Claims.Time(josekit.ClaimExpiresAt)
		if err := s.registry.SetStatus(ctx, oldID, oidc.TokenStatusRevoked, oldExpiry); err != nil {
			return nil, fmt.Errorf("failed to revoke rotated refresh token: %w", err)
		}
	}

	session, authCtx, err := s.reconstruct(old)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, session, authCtx, client, originalIssuedAt, now, expiresAt)
}

// AuthorizeByRefreshToken rebuilds the grant a validated refresh token
// represents, for the token endpoint to consume.
func (s *RefreshTokenService) AuthorizeByRefreshToken(token *josekit.JWT, raw string) (*oidc.AuthorizedGrant, error) {
	session, authCtx, err := s.reconstruct(token)
	if err != nil {
		return nil, err
	}
	return &oidc.AuthorizedGrant{
		Session:      session,
		Context:      authCtx,
		RefreshToken: raw,
	}, nil
}

func (s *RefreshTokenService) reconstruct(token *josekit.JWT) (*oidc.AuthSession, *oidc.AuthorizationContext, error) {
	if token.Header.Type != josekit.TypeRefreshToken {
		return nil, nil, fmt.Errorf("not a refresh token: typ %q", token.Header.Type)
	}
	c := token.Claims
	session := &oidc.AuthSession{
		Subject:   c.String(josekit.ClaimSubject),
		SessionID: c.String(josekit.ClaimSessionID),
	}
	authCtx := &oidc.AuthorizationContext{
		ClientID: c.String(josekit.ClaimClientID),
		Scope:    c.StringSlice(josekit.ClaimScope),
	}
	return session, authCtx, nil
}

func (s *RefreshTokenService) issue(ctx context.Context, session *oidc.AuthSession, authCtx *oidc.AuthorizationContext, client *oidc.ClientInfo, issuedAt, notBefore, expiresAt time.Time) (*Token, error) {
	issuer, err := s.issuer.Issuer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer: %w", err)
	}

	jwtID := s.idGen.NewID()
	token := josekit.NewJWT(josekit.TypeRefreshToken, s.alg)
	c := token.Claims
	c.SetString(josekit.ClaimIssuer, issuer)
	c.SetTime(josekit.ClaimIssuedAt, issuedAt)
	c.SetTime(josekit.ClaimNotBefore, notBefore)
	c.SetTime(josekit.ClaimExpiresAt, expiresAt)
	c.SetString(josekit.ClaimJwtID, jwtID)
	c.SetStringSlice(josekit.ClaimAudience, []string{authCtx.ClientID})
	c.SetString(josekit.ClaimSubject, session.Subject)
	c.SetString(josekit.ClaimSessionID, session.SessionID)
	c.SetString(josekit.ClaimClientID, authCtx.ClientID)
	c.SetStringSlice(josekit.ClaimScope, authCtx.Scope)

	value, err := s.formatter.FormatAndSign(ctx, token, client)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, ID: jwtID, ExpiresAt: expiresAt}, nil
}
