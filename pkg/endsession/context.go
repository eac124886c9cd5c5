// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package endsession implements RP-initiated logout: request validation,
// session teardown, and fan-out notification to every client that shared
// the session.
package endsession

import (
	"context"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// ValidationContext accumulates validated end-session state.
type ValidationContext struct {
	// Request is the raw inbound request.
	Request *oidc.EndSessionRequest

	// ClientID is the requesting client: the request's own client_id, or the
	// one inferred from the id_token_hint audience.
	ClientID string

	// IDTokenHint is the parsed and verified hint, when one was presented.
	IDTokenHint *josekit.JWT

	// ClientInfo is the resolved client registration, populated when a
	// validator needed it.
	ClientInfo *oidc.ClientInfo

	// PostLogoutRedirectURI is the redirect target confirmed against the
	// client's registration. Empty when the request named none.
	PostLogoutRedirectURI string
}

// NewValidationContext wraps a request, seeding the client from the request
// itself.
func NewValidationContext(request *oidc.EndSessionRequest) *ValidationContext {
	return &ValidationContext{Request: request, ClientID: request.ClientID}
}

// Validator is one stage of the end-session validation chain.
type Validator interface {
	Validate(ctx context.Context, vc *ValidationContext) *oidc.RequestError
}

// Response is the successful end-session result.
type Response struct {
	// PostLogoutRedirectURI is where to send the user agent, with the
	// request's state appended. Empty when the request named no redirect.
	PostLogoutRedirectURI string

	// FrontChannelLogoutURIs are the iframe URLs to render so front-channel
	// clients learn about the logout. Never nil.
	FrontChannelLogoutURIs []string
}
