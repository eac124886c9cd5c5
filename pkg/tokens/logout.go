// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// Logout token precondition failures.
var (
	ErrBackChannelNotConfigured = errors.New("client has no back-channel logout configuration")
	ErrSessionIDRequired        = errors.New("client requires a session id in logout tokens")
	ErrNoLogoutIdentity         = errors.New("logout token needs a subject or a session id")
)

// SubjectConverter maps the internal subject identifier to the subject type
// the client registered for (public vs pairwise).
type SubjectConverter func(subject string, client *oidc.ClientInfo) string

// LogoutTokenService issues logout+jwt back-channel logout tokens.
type LogoutTokenService struct {
	formatter josekit.Formatter
	issuer    oidc.IssuerProvider
	clock     oidc.Clock
	idGen     oidc.IDGenerator
	convert   SubjectConverter
	alg       string
}

// LogoutTokenOption configures the service.
type LogoutTokenOption func(*LogoutTokenService)

// WithSubjectConverter installs a subject identifier conversion. The default
// passes the subject through unchanged.
func WithSubjectConverter(convert SubjectConverter) LogoutTokenOption {
	return func(s *LogoutTokenService) {
		s.convert = convert
	}
}

// WithLogoutTokenAlgorithm overrides the signing algorithm.
func WithLogoutTokenAlgorithm(alg string) LogoutTokenOption {
	return func(s *LogoutTokenService) {
		s.alg = alg
	}
}

// NewLogoutTokenService wires a logout token service.
func NewLogoutTokenService(formatter josekit.Formatter, issuer oidc.IssuerProvider, clock oidc.Clock, idGen oidc.IDGenerator, opts ...LogoutTokenOption) *LogoutTokenService {
	s := &LogoutTokenService{
		formatter: formatter,
		issuer:    issuer,
		clock:     clock,
		idGen:     idGen,
		convert:   func(subject string, _ *oidc.ClientInfo) string { return subject },
		alg:       DefaultSigningAlgorithm,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLogoutToken issues a logout token for the terminated session,
// addressed to one client. Logout tokens never carry a nonce (OIDC
// Back-Channel Logout Section 2.4 forbids it).
func (s *LogoutTokenService) CreateLogoutToken(ctx context.Context, logout *oidc.LogoutContext, client *oidc.ClientInfo) (*Token, error) {
	if client.BackChannelLogout == nil {
		return nil, fmt.Errorf("%w: client %s", ErrBackChannelNotConfigured, client.ClientID)
	}
	if client.BackChannelLogout.RequiresSessionID && logout.SessionID == "" {
		return nil, fmt.Errorf("%w: client %s", ErrSessionIDRequired, client.ClientID)
	}
	subject := s.convert(logout.SubjectID, client)
	if subject == "" && logout.SessionID == "" {
		return nil, ErrNoLogoutIdentity
	}

	issuer, err := s.issuer.Issuer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(orDefault(client.BackChannelLogout.LogoutTokenExpiresIn, DefaultLogoutTokenLifetime))
	jwtID := s.idGen.NewID()

	token := josekit.NewJWT(josekit.TypeLogoutToken, s.alg)
	c := token.Claims
	c.SetString(josekit.ClaimIssuer, issuer)
	c.SetStringSlice(josekit.ClaimAudience, []string{client.ClientID})
	c.SetTime(josekit.ClaimIssuedAt, now)
	c.SetTime(josekit.ClaimNotBefore, now)
	c.SetTime(josekit.ClaimExpiresAt, expiresAt)
	c.SetString(josekit.ClaimJwtID, jwtID)
	c.SetString(josekit.ClaimSubject, subject)
	c.SetString(josekit.ClaimSessionID, logout.SessionID)
	c[josekit.ClaimEvents] = map[string]any{josekit.BackChannelLogoutEvent: map[string]any{}}

	value, err := s.formatter.FormatAndSign(ctx, token, client)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, ID: jwtID, ExpiresAt: expiresAt}, nil
}
