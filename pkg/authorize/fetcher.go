// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/par"
)

// RequestObjectValidator verifies a JAR request object and returns its
// parsed form. josekit.ClientJwtValidator satisfies it.
type RequestObjectValidator interface {
	Validate(ctx context.Context, raw string) (*josekit.JWT, error)
}

// Fetcher turns the inbound parameters into a plain authorization request
// by dereferencing PAR request URIs and unwrapping JAR request objects. It
// runs before validation; the result feeds the validator chain.
type Fetcher struct {
	parStore par.RequestStore
	jar      RequestObjectValidator
	logger   *slog.Logger
}

// NewFetcher wires a fetcher. jar may be nil when request objects are not
// accepted.
func NewFetcher(parStore par.RequestStore, jar RequestObjectValidator, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{parStore: parStore, jar: jar, logger: logger}
}

// Fetch resolves request_uri and request into a plain request. A pushed
// request is consumed on first use.
func (f *Fetcher) Fetch(ctx context.Context, request *oidc.AuthorizationRequest) (*oidc.AuthorizationRequest, *oidc.RequestError) {
	if request.RequestURI != "" {
		resolved, reqErr := f.fetchPushed(ctx, request.RequestURI)
		if reqErr != nil {
			return nil, reqErr
		}
		request = resolved
	}

	if request.Request != "" {
		resolved, reqErr := f.unwrapRequestObject(ctx, request)
		if reqErr != nil {
			return nil, reqErr
		}
		request = resolved
	}

	return request, nil
}

func (f *Fetcher) fetchPushed(ctx context.Context, requestURI string) (*oidc.AuthorizationRequest, *oidc.RequestError) {
	if !strings.HasPrefix(requestURI, par.RequestURIPrefix) {
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestURI,
			"request_uri must reference a pushed authorization request")
	}

	stored, err := f.parStore.TryGet(ctx, requestURI, true)
	if err != nil {
		f.logger.Error("pushed request lookup failed", "request_uri", requestURI, "error", err)
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestURI,
			"pushed request could not be retrieved")
	}
	if stored == nil {
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestURI,
			"request_uri is unknown, expired or already used")
	}
	return stored, nil
}

func (f *Fetcher) unwrapRequestObject(ctx context.Context, outer *oidc.AuthorizationRequest) (*oidc.AuthorizationRequest, *oidc.RequestError) {
	if f.jar == nil {
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestObject,
			"request objects are not accepted")
	}

	token, err := f.jar.Validate(ctx, outer.Request)
	if err != nil {
		f.logger.Warn("request object rejected", "client_id", outer.ClientID, "error", err)
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestObject,
			"request object validation failed")
	}

	merged := mergeRequestObject(outer, token.Claims)
	if outer.ClientID != "" && merged.ClientID != outer.ClientID {
		return nil, oidc.NewRequestError(oidc.ErrorCodeInvalidRequestObject,
			"request object client_id does not match the request")
	}
	return merged, nil
}

// mergeRequestObject overlays the request object's parameters onto the outer
// request. Parameters inside the signed object win (OIDC Core Section 6.1);
// outer parameters survive only where the object is silent.
func mergeRequestObject(outer *oidc.AuthorizationRequest, claims josekit.Claims) *oidc.AuthorizationRequest {
	merged := *outer
	merged.Request = ""

	if v := claims.String("client_id"); v != "" {
		merged.ClientID = v
	}
	if v := claims.String("response_type"); v != "" {
		merged.ResponseType = strings.Fields(v)
	}
	if v := claims.String("redirect_uri"); v != "" {
		merged.RedirectURI = v
	}
	if v := claims.String("scope"); v != "" {
		merged.Scope = strings.Fields(v)
	}
	if v := claims.String("state"); v != "" {
		merged.State = v
	}
	if v := claims.String("response_mode"); v != "" {
		merged.ResponseMode = v
	}
	if v := claims.String("nonce"); v != "" {
		merged.Nonce = v
	}
	if v := claims.String("prompt"); v != "" {
		merged.Prompt = v
	}
	if v := claims.String("display"); v != "" {
		merged.Display = v
	}
	if v := claims.String("login_hint"); v != "" {
		merged.LoginHint = v
	}
	if v := claims.String("id_token_hint"); v != "" {
		merged.IDTokenHint = v
	}
	if v := claims.String("code_challenge"); v != "" {
		merged.CodeChallenge = v
	}
	if v := claims.String("code_challenge_method"); v != "" {
		merged.CodeChallengeMethod = v
	}
	if v := claims.String("acr_values"); v != "" {
		merged.ACRValues = strings.Fields(v)
	}
	if v := claims.StringSlice("resource"); len(v) > 0 {
		merged.Resources = v
	}
	if v, ok := claims["max_age"]; ok {
		if seconds, isNumber := v.(float64); isNumber {
			maxAge := time.Duration(seconds) * time.Second
			merged.MaxAge = &maxAge
		}
	}
	if v, ok := claims["claims"]; ok {
		if parsed := parseRequestedClaims(v); parsed != nil {
			merged.Claims = parsed
		}
	}
	return &merged
}

// parseRequestedClaims re-encodes the decoded claims member into the typed
// form. The member arrives as a generic JSON object out of the JWT payload.
func parseRequestedClaims(v any) *oidc.RequestedClaims {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var parsed oidc.RequestedClaims
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return &parsed
}
