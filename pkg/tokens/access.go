// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"fmt"
	"slices"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// reservedAccessTokenClaims are claims the service owns; session additional
// claims never override them, and reconstruction does not treat them as
// user data.
var reservedAccessTokenClaims = []string{
	josekit.ClaimIssuer, josekit.ClaimSubject, josekit.ClaimAudience,
	josekit.ClaimExpiresAt, josekit.ClaimNotBefore, josekit.ClaimIssuedAt,
	josekit.ClaimJwtID, josekit.ClaimSessionID, josekit.ClaimAuthTime,
	josekit.ClaimIdentityProvider, josekit.ClaimClientID, josekit.ClaimScope,
	josekit.ClaimEmail, josekit.ClaimEmailVerified,
}

// AccessTokenService issues at+jwt access tokens and reconstructs the
// session and authorization context from tokens presented back to the
// server.
type AccessTokenService struct {
	formatter josekit.Formatter
	issuer    oidc.IssuerProvider
	clock     oidc.Clock
	idGen     oidc.IDGenerator

	// alg signs access tokens; RS256 unless configured otherwise.
	alg string
}

// AccessTokenOption configures the service.
type AccessTokenOption func(*AccessTokenService)

// WithAccessTokenAlgorithm overrides the signing algorithm.
func WithAccessTokenAlgorithm(alg string) AccessTokenOption {
	return func(s *AccessTokenService) {
		s.alg = alg
	}
}

// NewAccessTokenService wires an access token service.
func NewAccessTokenService(formatter josekit.Formatter, issuer oidc.IssuerProvider, clock oidc.Clock, idGen oidc.IDGenerator, opts ...AccessTokenOption) *AccessTokenService {
	s := &AccessTokenService{
		formatter: formatter,
		issuer:    issuer,
		clock:     clock,
		idGen:     idGen,
		alg:       DefaultSigningAlgorithm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccessToken issues an access token for the authorized session.
func (s *AccessTokenService) CreateAccessToken(ctx context.Context, session *oidc.AuthSession, authCtx *oidc.AuthorizationContext, client *oidc.ClientInfo) (*Token, error) {
	issuer, err := s.issuer.Issuer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(orDefault(client.AccessTokenExpiresIn, DefaultAccessTokenLifetime))
	jwtID := s.idGen.NewID()

	token := josekit.NewJWT(josekit.TypeAccessToken, s.alg)
	c := token.Claims

	// Session additional claims merge at top level but never shadow the
	// claims the service owns.
	for name, value := range session.AdditionalClaims {
		if !slices.Contains(reservedAccessTokenClaims, name) {
			c[name] = value
		}
	}

	c.SetString(josekit.ClaimIssuer, issuer)
	c.SetTime(josekit.ClaimIssuedAt, now)
	c.SetTime(josekit.ClaimNotBefore, now)
	c.SetTime(josekit.ClaimExpiresAt, expiresAt)
	c.SetString(josekit.ClaimJwtID, jwtID)
	c.SetString(josekit.ClaimSubject, session.Subject)
	c.SetString(josekit.ClaimSessionID, session.SessionID)
	c.SetTime(josekit.ClaimAuthTime, session.AuthenticationTime)
	c.SetString(josekit.ClaimIdentityProvider, session.IdentityProvider)
	c.SetString(josekit.ClaimClientID, authCtx.ClientID)
	c.SetStringSlice(josekit.ClaimScope, authCtx.Scope)
	c.SetString(josekit.ClaimEmail, session.Email)
	if session.EmailVerified != nil {
		c[josekit.ClaimEmailVerified] = *session.EmailVerified
	}

	// Self-audience: a token without resource indicators is addressed to
	// the requesting client itself.
	if len(authCtx.Resources) > 0 {
		c.SetStringSlice(josekit.ClaimAudience, authCtx.Resources)
	} else {
		c.SetStringSlice(josekit.ClaimAudience, []string{authCtx.ClientID})
	}

	value, err := s.formatter.FormatAndSign(ctx, token, client)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, ID: jwtID, ExpiresAt: expiresAt}, nil
}

// AuthenticateByAccessToken reconstructs the session and authorization
// context carried inside a validated access token.
func (s *AccessTokenService) AuthenticateByAccessToken(token *josekit.JWT) (*oidc.AuthSession, *oidc.AuthorizationContext, error) {
	if token.Header.Type != josekit.TypeAccessToken {
		return nil, nil, fmt.Errorf("not an access token: typ %q", token.Header.Type)
	}
	c := token.Claims

	session := &oidc.AuthSession{
		Subject:          c.String(josekit.ClaimSubject),
		SessionID:        c.String(josekit.ClaimSessionID),
		IdentityProvider: c.String(josekit.ClaimIdentityProvider),
		Email:            c.String(josekit.ClaimEmail),
	}
	if authTime, ok := c.Time(josekit.ClaimAuthTime); ok {
		session.AuthenticationTime = authTime
	}
	if v, ok := c[josekit.ClaimEmailVerified].(bool); ok {
		session.EmailVerified = &v
	}

	additional := make(map[string]any)
	for name, value := range c {
		if !slices.Contains(reservedAccessTokenClaims, name) {
			additional[name] = value
		}
	}
	if len(additional) > 0 {
		session.AdditionalClaims = additional
	}

	clientID := c.String(josekit.ClaimClientID)
	authCtx := &oidc.AuthorizationContext{
		ClientID: clientID,
		Scope:    c.StringSlice(josekit.ClaimScope),
	}

	// The self-audience pattern marks the absence of resource indicators.
	aud := c.Audience()
	if !(len(aud) == 1 && aud[0] == clientID) {
		authCtx.Resources = aud
	}

	return session, authCtx, nil
}
