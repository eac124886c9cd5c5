// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"
	"time"

	"github.com/authkeel/authkeel/pkg/grants"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/tokens"
)

// Processor turns a validated request into an authorization response:
// it snapshots the authorization into a grant, issues whatever the flow
// calls for, and records the client against the session for logout fan-out.
type Processor struct {
	accessTokens   *tokens.AccessTokenService
	identityTokens *tokens.IdentityTokenService
	grants         *grants.Service
	clock          oidc.Clock
	codeTTL        time.Duration
	logger         *slog.Logger
}

// ProcessorOption configures the processor.
type ProcessorOption func(*Processor)

// WithCodeTTL overrides how long an authorization code stays redeemable.
func WithCodeTTL(ttl time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.codeTTL = ttl
	}
}

// NewProcessor wires a processor.
func NewProcessor(accessTokens *tokens.AccessTokenService, identityTokens *tokens.IdentityTokenService, grantService *grants.Service, clock oidc.Clock, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		accessTokens:   accessTokens,
		identityTokens: identityTokens,
		grants:         grantService,
		clock:          clock,
		codeTTL:        grants.DefaultCodeTTL,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process issues the response for a validated request. A *RequestError is a
// client-visible refusal delivered by redirect; a plain error is an internal
// failure the client learns nothing about.
func (p *Processor) Process(ctx context.Context, valid *oidc.ValidAuthorizationRequest, session *oidc.AuthSession) (*AuthorizationResponse, *oidc.RequestError, error) {
	vc := valid.Context
	request := vc.Request
	client := vc.ClientInfo()
	flow := vc.FlowType()

	authCtx := &oidc.AuthorizationContext{
		ClientID:            client.ClientID,
		Scope:               vc.ScopeNames(),
		RequestedClaims:     request.Claims,
		RedirectURI:         vc.ValidRedirectURI,
		Nonce:               request.Nonce,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
		Resources:           vc.ResourceURIs(),
	}

	session.AddAffectedClient(client.ClientID)

	response := &AuthorizationResponse{
		RedirectURI:  vc.ValidRedirectURI,
		ResponseMode: vc.ResponseMode,
		State:        request.State,
	}

	if flow != oidc.FlowImplicit {
		code, err := p.grants.IssueCode(ctx, &oidc.AuthorizedGrant{Session: session, Context: authCtx}, p.codeTTL)
		if err != nil {
			return nil, nil, err
		}
		response.Code = code
	}

	if request.HasResponseTypeFold(oidc.ResponseTypeToken) {
		accessToken, err := p.accessTokens.CreateAccessToken(ctx, session, authCtx, client)
		if err != nil {
			return nil, nil, err
		}
		response.AccessToken = accessToken.Value
		response.TokenType = TokenTypeBearer
		response.ExpiresIn = int64(accessToken.ExpiresAt.Sub(p.clock.Now()) / time.Second)
	}

	if request.HasResponseTypeFold(oidc.ResponseTypeIDToken) {
		idToken, err := p.identityTokens.CreateIdentityToken(ctx, tokens.IdentityTokenRequest{
			Session:           session,
			Context:           authCtx,
			Client:            client,
			AuthorizationCode: response.Code,
			AccessToken:       response.AccessToken,
			IncludeUserClaims: response.AccessToken == "",
		})
		if err != nil {
			return nil, nil, err
		}
		if idToken == nil {
			p.logger.Warn("identity token withheld for authorization response",
				"client_id", client.ClientID, "sub", session.Subject)
			reqErr := oidc.NewRequestError(oidc.ErrorCodeConsentRequired,
				"user claims are not available for release")
			return nil, reqErr.WithRedirect(vc.ValidRedirectURI, vc.ResponseMode), nil
		}
		response.IDToken = idToken.Value
	}

	p.logger.Info("authorization granted",
		"client_id", client.ClientID,
		"flow", flow.String(),
		"response_mode", vc.ResponseMode,
		"scope", vc.ScopeNames())
	return response, nil, nil
}
