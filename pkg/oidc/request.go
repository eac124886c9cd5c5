// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"strings"
	"time"
)

// Response type components per OAuth 2.0 and OIDC Core. A response_type is an
// ordered sequence of these values (e.g. "code id_token").
const (
	ResponseTypeCode    = "code"
	ResponseTypeIDToken = "id_token"
	ResponseTypeToken   = "token"
)

// Response modes per OAuth 2.0 Multiple Response Type Encoding Practices.
// The empty string means the request did not specify one.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Scopes with flow-level semantics.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeAddress       = "address"
	ScopeOfflineAccess = "offline_access"
)

// CodeChallengeMethodPlain is the PKCE challenge method that transmits the
// verifier unchanged. Matching is exact: "PLAIN" is a different method.
const CodeChallengeMethodPlain = "plain"

// CodeChallengeMethodS256 is the SHA-256 PKCE challenge method (RFC 7636).
const CodeChallengeMethodS256 = "S256"

// AuthorizationRequest is the raw inbound authorization request. It is
// populated once at ingress (or by PAR/JAR dereference) and never mutated by
// the validation pipeline; validated state accumulates in the
// AuthorizationValidationContext instead.
type AuthorizationRequest struct {
	// ClientID identifies the requesting client. Comparison is case-sensitive.
	ClientID string

	// ResponseType is the ordered sequence of response type components.
	ResponseType []string

	// RedirectURI is the callback the client asked for. It must exactly match
	// a registered redirect URI.
	RedirectURI string

	// Scope is the ordered sequence of requested scope values. Order and
	// duplicates are preserved through validation.
	Scope []string

	// State is the opaque client value echoed back in the response.
	State string

	// ResponseMode is the requested response delivery mechanism, or empty.
	ResponseMode string

	// Nonce binds an ID token to the client session. Opaque: whitespace is a
	// legal value.
	Nonce string

	Prompt        string
	Display       string
	MaxAge        *time.Duration
	UILocales     []string
	ClaimsLocales []string

	// IDTokenHint carries a previously issued ID token identifying the
	// end-user.
	IDTokenHint string

	LoginHint string
	ACRValues []string

	// CodeChallenge and CodeChallengeMethod carry the PKCE binding (RFC 7636).
	CodeChallenge       string
	CodeChallengeMethod string

	// Request holds an inline JAR request object (a signed JWT).
	Request string

	// RequestURI references a pushed or remote request object.
	RequestURI string

	// Resources lists the target resource indicators (RFC 8707).
	Resources []string

	// Claims is the OIDC claims request parameter, already parsed.
	Claims *RequestedClaims
}

// HasResponseType reports whether the response_type contains the exact
// literal value. Case-sensitive per OAuth 2.0.
func (r *AuthorizationRequest) HasResponseType(value string) bool {
	for _, rt := range r.ResponseType {
		if rt == value {
			return true
		}
	}
	return false
}

// HasResponseTypeFold reports whether the response_type contains the value
// under case-insensitive comparison. Used when deduplicating components.
func (r *AuthorizationRequest) HasResponseTypeFold(value string) bool {
	for _, rt := range r.ResponseType {
		if strings.EqualFold(rt, value) {
			return true
		}
	}
	return false
}

// RequestedClaims is the parsed "claims" request parameter, split by
// destination per OIDC Core Section 5.5.
type RequestedClaims struct {
	// UserInfo lists claims requested for the userinfo destination.
	UserInfo map[string]*ClaimDetails `json:"userinfo,omitempty"`

	// IDToken lists claims requested for delivery inside the ID token.
	IDToken map[string]*ClaimDetails `json:"id_token,omitempty"`
}

// ClaimDetails qualifies an individual requested claim. A nil value means the
// claim was requested in default (voluntary) mode.
type ClaimDetails struct {
	Essential bool  `json:"essential,omitempty"`
	Value     any   `json:"value,omitempty"`
	Values    []any `json:"values,omitempty"`
}

// EndSessionRequest is the raw inbound RP-initiated logout request
// (OIDC RP-Initiated Logout 1.0, Section 2).
type EndSessionRequest struct {
	// IDTokenHint is a previously issued ID token identifying the end-user
	// and the client the session was established for.
	IDTokenHint string

	// ClientID identifies the requesting client. May be absent, in which case
	// it is inferred from the id_token_hint audience.
	ClientID string

	// PostLogoutRedirectURI is where to send the user agent after sign-out.
	PostLogoutRedirectURI string

	// State is echoed back as a query parameter on the post-logout redirect.
	State string

	LogoutHint string
	UILocales  []string
}

// PushedAuthorizationResponse is the result of storing a pushed authorization
// request (RFC 9126).
type PushedAuthorizationResponse struct {
	// RequestURI is the one-time reference the client presents at the
	// authorization endpoint.
	RequestURI string `json:"request_uri"`

	// Model is the stored authorization request.
	Model *AuthorizationRequest `json:"-"`

	// ExpiresIn is how long the request URI stays consumable.
	ExpiresIn time.Duration `json:"expires_in"`
}
