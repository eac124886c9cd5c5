// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ParseAuthorizationRequest maps the request form parameters onto the
// authorization request model. Multi-valued parameters follow their
// wire format: response_type and scope are space separated, resource
// repeats the parameter.
func ParseAuthorizationRequest(r *http.Request) (*oidc.AuthorizationRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	form := r.Form

	request := &oidc.AuthorizationRequest{
		ClientID:            form.Get("client_id"),
		ResponseType:        strings.Fields(form.Get("response_type")),
		RedirectURI:         form.Get("redirect_uri"),
		Scope:               strings.Fields(form.Get("scope")),
		State:               form.Get("state"),
		ResponseMode:        form.Get("response_mode"),
		Nonce:               form.Get("nonce"),
		Prompt:              form.Get("prompt"),
		Display:             form.Get("display"),
		UILocales:           strings.Fields(form.Get("ui_locales")),
		ClaimsLocales:       strings.Fields(form.Get("claims_locales")),
		IDTokenHint:         form.Get("id_token_hint"),
		LoginHint:           form.Get("login_hint"),
		ACRValues:           strings.Fields(form.Get("acr_values")),
		CodeChallenge:       form.Get("code_challenge"),
		CodeChallengeMethod: form.Get("code_challenge_method"),
		Request:             form.Get("request"),
		RequestURI:          form.Get("request_uri"),
		Resources:           form["resource"],
	}

	if raw := form.Get("max_age"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && seconds >= 0 {
			maxAge := time.Duration(seconds) * time.Second
			request.MaxAge = &maxAge
		}
	}

	if raw := form.Get("claims"); raw != "" {
		var claims oidc.RequestedClaims
		if err := json.Unmarshal([]byte(raw), &claims); err == nil {
			request.Claims = &claims
		}
	}

	return request, nil
}

// ParseEndSessionRequest maps the request form parameters onto the
// end-session request model.
func ParseEndSessionRequest(r *http.Request) (*oidc.EndSessionRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	form := r.Form

	return &oidc.EndSessionRequest{
		IDTokenHint:           form.Get("id_token_hint"),
		ClientID:              form.Get("client_id"),
		PostLogoutRedirectURI: form.Get("post_logout_redirect_uri"),
		State:                 form.Get("state"),
		LogoutHint:            form.Get("logout_hint"),
		UILocales:             strings.Fields(form.Get("ui_locales")),
	}, nil
}
