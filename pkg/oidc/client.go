// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// ClientInfo is the registered metadata and policy for a single OAuth client.
type ClientInfo struct {
	// ClientID is the unique, case-sensitive client identifier.
	ClientID string

	// RedirectURIs are the registered callback URIs. An authorization request
	// must name one of them exactly.
	RedirectURIs []string

	// PostLogoutRedirectURIs are the URIs the client may be sent to after
	// RP-initiated logout.
	PostLogoutRedirectURIs []string

	// AllowedResponseTypes lists the response_type combinations the client is
	// registered for. Each entry is an unordered combination of components.
	AllowedResponseTypes [][]string

	// PKCERequired controls whether authorization code requests must carry a
	// PKCE challenge. Nil means required; only an explicit false disables it.
	PKCERequired *bool

	// PlainPKCEAllowed permits the "plain" code_challenge_method.
	PlainPKCEAllowed bool

	// OfflineAccessAllowed permits the offline_access scope. Nil counts as
	// denied.
	OfflineAccessAllowed *bool

	// RefreshToken is the refresh token expiration and reuse policy.
	RefreshToken RefreshTokenPolicy

	// AccessTokenExpiresIn is the access token lifetime.
	AccessTokenExpiresIn time.Duration

	// IdentityTokenExpiresIn is the ID token lifetime.
	IdentityTokenExpiresIn time.Duration

	// IdentityTokenSignedResponseAlgorithm selects the JWS algorithm for ID
	// tokens issued to this client (default RS256).
	IdentityTokenSignedResponseAlgorithm string

	// ForceUserClaimsInIdentityToken includes profile claims in the ID token
	// even when an access token accompanies it.
	ForceUserClaimsInIdentityToken bool

	// BackChannelLogout configures server-to-server logout notification.
	// Nil means the client does not receive back-channel logout tokens.
	BackChannelLogout *BackChannelLogoutOptions

	// FrontChannelLogout configures user-agent logout notification. Nil means
	// the client does not participate in front-channel logout.
	FrontChannelLogout *FrontChannelLogoutOptions

	// ClientSecrets are the shared secrets for confidential client
	// authentication.
	ClientSecrets []ClientSecret

	// Jwks holds the client's registered public keys, used to verify client
	// assertions and request objects and to encrypt tokens to the client.
	Jwks *jose.JSONWebKeySet

	// JwksURI references the client's hosted key set; fetched and cached when
	// set.
	JwksURI string

	// KeyManagementAlgorithm selects the JWE alg for tokens encrypted to this
	// client (e.g. RSA-OAEP-256). Empty disables encryption even when
	// encryption keys are registered.
	KeyManagementAlgorithm string
}

// RefreshTokenPolicy bounds refresh token lifetime and reuse.
type RefreshTokenPolicy struct {
	// AbsoluteExpiresIn is the hard ceiling measured from the original
	// issuance. Renewal never extends past it.
	AbsoluteExpiresIn time.Duration

	// SlidingExpiresIn, when non-nil, is the per-renewal window. The
	// effective expiry is the earlier of the sliding and absolute deadlines.
	SlidingExpiresIn *time.Duration

	// AllowReuse keeps a rotated-out token usable until its natural expiry.
	// When false the old token is revoked before the replacement is issued.
	AllowReuse bool
}

// BackChannelLogoutOptions configures OIDC Back-Channel Logout 1.0 for a
// client.
type BackChannelLogoutOptions struct {
	// URI receives the logout token POST.
	URI string

	// RequiresSessionID demands a sid claim in logout tokens.
	RequiresSessionID bool

	// LogoutTokenExpiresIn is the logout token lifetime.
	LogoutTokenExpiresIn time.Duration
}

// FrontChannelLogoutOptions configures OIDC Front-Channel Logout 1.0 for a
// client.
type FrontChannelLogoutOptions struct {
	// URI is rendered as an iframe in the end-session response.
	URI string

	// RequiresSessionID appends iss and sid query parameters to the URI.
	RequiresSessionID bool
}

// ClientSecret is a single shared secret with optional expiry.
type ClientSecret struct {
	Value     string
	ExpiresAt *time.Time
}

// OfflineAccessPermitted reports whether the client may request
// offline_access. A nil flag counts as denied.
func (c *ClientInfo) OfflineAccessPermitted() bool {
	return c.OfflineAccessAllowed != nil && *c.OfflineAccessAllowed
}

// PKCEMandatory reports whether an authorization request from this client
// must carry a code challenge. Nil defaults to required.
func (c *ClientInfo) PKCEMandatory() bool {
	return c.PKCERequired == nil || *c.PKCERequired
}

// ClientInfoProvider resolves registered client metadata. Lookups are
// suspension points and accept a context.
type ClientInfoProvider interface {
	// TryGetClient returns the client registered under id, or nil when the id
	// is unknown. Lookup is case-sensitive.
	TryGetClient(ctx context.Context, id string) (*ClientInfo, error)
}
