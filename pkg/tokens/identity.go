// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// identityScopes are the OIDC standard scopes whose claims move to the
// userinfo endpoint when an access token accompanies the identity token
// (OIDC Core Section 5.4).
var identityScopes = []string{"profile", "email", "address"}

// IdentityTokenRequest gathers everything identity token issuance depends
// on.
type IdentityTokenRequest struct {
	Session *oidc.AuthSession
	Context *oidc.AuthorizationContext
	Client  *oidc.ClientInfo

	// AuthorizationCode, when non-empty, is bound into the token as c_hash.
	AuthorizationCode string

	// AccessToken, when non-empty, is bound into the token as at_hash.
	AccessToken string

	// IncludeUserClaims keeps the profile scopes in the claims request even
	// though an access token accompanies the token.
	IncludeUserClaims bool
}

// IdentityTokenService issues id+jwt identity tokens.
type IdentityTokenService struct {
	formatter josekit.Formatter
	issuer    oidc.IssuerProvider
	clock     oidc.Clock
	idGen     oidc.IDGenerator
	claims    UserClaimsProvider
	logger    *slog.Logger
}

// NewIdentityTokenService wires an identity token service.
func NewIdentityTokenService(formatter josekit.Formatter, issuer oidc.IssuerProvider, clock oidc.Clock, idGen oidc.IDGenerator, claims UserClaimsProvider, logger *slog.Logger) *IdentityTokenService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityTokenService{
		formatter: formatter,
		issuer:    issuer,
		clock:     clock,
		idGen:     idGen,
		claims:    claims,
		logger:    logger,
	}
}

// CreateIdentityToken issues an identity token, or nil when the claims
// provider withholds the user.
func (s *IdentityTokenService) CreateIdentityToken(ctx context.Context, req IdentityTokenRequest) (*Token, error) {
	client := req.Client

	scopes := req.Context.Scope
	if !req.IncludeUserClaims && !client.ForceUserClaimsInIdentityToken {
		scopes = slices.DeleteFunc(slices.Clone(scopes), func(s string) bool {
			return slices.Contains(identityScopes, s)
		})
	}

	var requested map[string]*oidc.ClaimDetails
	if rc := req.Context.RequestedClaims; rc != nil {
		requested = rc.IDToken
	}

	userClaims, err := s.claims.GetUserClaims(ctx, req.Session, scopes, requested, client)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain user claims: %w", err)
	}
	if userClaims == nil {
		s.logger.Debug("identity token withheld, user claims unavailable",
			"client_id", client.ClientID, "sub", req.Session.Subject)
		return nil, nil
	}

	issuer, err := s.issuer.Issuer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve issuer: %w", err)
	}

	alg := client.IdentityTokenSignedResponseAlgorithm
	if alg == "" {
		alg = DefaultSigningAlgorithm
	}

	now := s.clock.Now()
	expiresAt := now.Add(orDefault(client.IdentityTokenExpiresIn, DefaultIdentityTokenLifetime))
	jwtID := s.idGen.NewID()

	token := josekit.NewJWT(josekit.TypeIDToken, alg)
	c := token.Claims

	for name, value := range userClaims {
		c[name] = value
	}

	c.SetString(josekit.ClaimIssuer, issuer)
	c.SetTime(josekit.ClaimIssuedAt, now)
	c.SetTime(josekit.ClaimNotBefore, now)
	c.SetTime(josekit.ClaimExpiresAt, expiresAt)
	c.SetString(josekit.ClaimJwtID, jwtID)
	c.SetString(josekit.ClaimSubject, req.Session.Subject)
	c.SetStringSlice(josekit.ClaimAudience, []string{client.ClientID})
	c.SetString(josekit.ClaimNonce, req.Context.Nonce)
	c.SetString(josekit.ClaimSessionID, req.Session.SessionID)
	c.SetTime(josekit.ClaimAuthTime, req.Session.AuthenticationTime)
	c.SetString(josekit.ClaimACR, req.Session.ACR)
	c.SetStringSlice(josekit.ClaimAMR, req.Session.AMR)

	if req.AuthorizationCode != "" {
		hash, err := josekit.TokenHash(alg, req.AuthorizationCode)
		if err != nil {
			return nil, err
		}
		c[josekit.ClaimCodeHash] = hash
	}
	if req.AccessToken != "" {
		hash, err := josekit.TokenHash(alg, req.AccessToken)
		if err != nil {
			return nil, err
		}
		c[josekit.ClaimAccessHash] = hash
	}

	value, err := s.formatter.FormatAndSign(ctx, token, client)
	if err != nil {
		return nil, err
	}
	return &Token{Value: value, ID: jwtID, ExpiresAt: expiresAt}, nil
}
