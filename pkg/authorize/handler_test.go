// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/grants"
	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/storage"
	"github.com/authkeel/authkeel/pkg/tokens"
)

type staticClaimsProvider struct {
	claims josekit.Claims
}

func (p *staticClaimsProvider) GetUserClaims(context.Context, *oidc.AuthSession, []string, map[string]*oidc.ClaimDetails, *oidc.ClientInfo) (josekit.Claims, error) {
	return p.claims, nil
}

type pipeline struct {
	handler *Handler
	grants  *grants.Service
}

func newPipeline(t *testing.T, userClaims josekit.Claims) *pipeline {
	t.Helper()

	resolver, err := keys.NewEphemeralResolver()
	require.NoError(t, err)
	formatter := josekit.NewServiceFormatter(resolver, nil, slog.Default())

	issuer := oidc.StaticIssuer("https://op.example.com")
	clock := oidc.SystemClock{}
	idGen := oidc.UUIDGenerator{}

	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	grantService := grants.NewService(
		grants.NewStorageGrantStore(store, storage.NewKeyFactory(""), storage.JSONSerializer{}, idGen),
		slog.Default(),
	)

	processor := NewProcessor(
		tokens.NewAccessTokenService(formatter, issuer, clock, idGen),
		tokens.NewIdentityTokenService(formatter, issuer, clock, idGen, &staticClaimsProvider{claims: userClaims}, slog.Default()),
		grantService,
		clock,
		slog.Default(),
	)

	fetcher := NewFetcher(newParStore(t), nil, slog.Default())
	chain := testChain(fakeClients{"client-1": testClient()})

	return &pipeline{
		handler: NewHandler(fetcher, chain, processor, slog.Default()),
		grants:  grantService,
	}
}

func decodeToken(t *testing.T, raw string) josekit.Claims {
	t.Helper()
	sig, err := jose.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	require.NoError(t, err)
	var claims josekit.Claims
	require.NoError(t, json.Unmarshal(sig.UnsafePayloadWithoutVerification(), &claims))
	return claims
}

func TestAuthorizeCodeFlow(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, josekit.Claims{})
	ctx := context.Background()
	session := &oidc.AuthSession{Subject: "user-1", SessionID: "sess-1"}

	response, reqErr, err := p.handler.Authorize(ctx, &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"code"},
		RedirectURI:  testRedirectURI,
		Scope:        []string{"openid"},
		State:        "xyz",
	}, session)
	require.NoError(t, err)
	require.Nil(t, reqErr)

	assert.NotEmpty(t, response.Code)
	assert.Empty(t, response.AccessToken)
	assert.Empty(t, response.IDToken)
	assert.Equal(t, oidc.ResponseModeQuery, response.ResponseMode)
	assert.Equal(t, "xyz", response.State)
	assert.Equal(t, []string{"client-1"}, session.AffectedClientIDs)

	// The code redeems into the grant the processor persisted.
	grant, err := p.grants.Redeem(ctx, grants.RedemptionRequest{
		Code:        response.Code,
		ClientID:    "client-1",
		RedirectURI: testRedirectURI,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", grant.Session.Subject)
	assert.Equal(t, []string{"openid"}, grant.Context.Scope)
	assert.Equal(t, testRedirectURI, grant.Context.RedirectURI)
}

func TestAuthorizeHybridFlow(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, josekit.Claims{"name": "Ada"})
	session := &oidc.AuthSession{Subject: "user-1", SessionID: "sess-1"}

	response, reqErr, err := p.handler.Authorize(context.Background(), &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"code", "id_token"},
		RedirectURI:  testRedirectURI,
		Scope:        []string{"openid"},
		Nonce:        "n1",
	}, session)
	require.NoError(t, err)
	require.Nil(t, reqErr)

	require.NotEmpty(t, response.Code)
	require.NotEmpty(t, response.IDToken)
	assert.Equal(t, oidc.ResponseModeFragment, response.ResponseMode)

	idClaims := decodeToken(t, response.IDToken)
	assert.Equal(t, "n1", idClaims.String(josekit.ClaimNonce))

	// The ID token binds the code it was issued alongside.
	wantCHash, err := josekit.TokenHash("RS256", response.Code)
	require.NoError(t, err)
	assert.Equal(t, wantCHash, idClaims.String(josekit.ClaimCodeHash))
	assert.False(t, idClaims.Has(josekit.ClaimAccessHash))
}

func TestAuthorizeImplicitFlow(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, josekit.Claims{})
	session := &oidc.AuthSession{Subject: "user-1", SessionID: "sess-1"}

	response, reqErr, err := p.handler.Authorize(context.Background(), &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"id_token", "token"},
		RedirectURI:  testRedirectURI,
		Scope:        []string{"openid"},
		Nonce:        "n1",
	}, session)
	require.NoError(t, err)
	require.Nil(t, reqErr)

	assert.Empty(t, response.Code, "implicit flow issues no code")
	require.NotEmpty(t, response.AccessToken)
	require.NotEmpty(t, response.IDToken)
	assert.Equal(t, TokenTypeBearer, response.TokenType)
	assert.Positive(t, response.ExpiresIn)

	idClaims := decodeToken(t, response.IDToken)
	wantAtHash, err := josekit.TokenHash("RS256", response.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, wantAtHash, idClaims.String(josekit.ClaimAccessHash))
	assert.False(t, idClaims.Has(josekit.ClaimCodeHash))

	params := response.Parameters()
	assert.Contains(t, params, "access_token")
	assert.Contains(t, params, "id_token")
	assert.NotContains(t, params, "code")
}

func TestAuthorizeWithheldClaims(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, nil)
	session := &oidc.AuthSession{Subject: "user-1", SessionID: "sess-1"}

	_, reqErr, err := p.handler.Authorize(context.Background(), &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"id_token"},
		RedirectURI:  testRedirectURI,
		Nonce:        "n1",
	}, session)
	require.NoError(t, err)
	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeConsentRequired, reqErr.Code)
	assert.Equal(t, testRedirectURI, reqErr.RedirectURI)
	assert.Equal(t, oidc.ResponseModeFragment, reqErr.ResponseMode)
}

func TestAuthorizeValidationErrorDelivery(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, josekit.Claims{})
	session := &oidc.AuthSession{Subject: "user-1"}

	_, reqErr, err := p.handler.Authorize(context.Background(), &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"id_token"},
		RedirectURI:  testRedirectURI,
		// Missing nonce.
	}, session)
	require.NoError(t, err)
	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
	assert.Equal(t, testRedirectURI, reqErr.RedirectURI)
	assert.Equal(t, oidc.ResponseModeFragment, reqErr.ResponseMode,
		"errors after flow classification use the flow's response mode")
	assert.Empty(t, session.AffectedClientIDs, "a rejected request does not touch the session")
}
