// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package endsession

import (
	"context"
	"log/slog"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// PostLogoutRedirectValidator confirms the post_logout_redirect_uri against
// the requesting client's registration.
type PostLogoutRedirectValidator struct {
	clients oidc.ClientInfoProvider
	logger  *slog.Logger
}

// NewPostLogoutRedirectValidator builds the redirect stage.
func NewPostLogoutRedirectValidator(clients oidc.ClientInfoProvider, logger *slog.Logger) *PostLogoutRedirectValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostLogoutRedirectValidator{clients: clients, logger: logger}
}

// Validate resolves the client and matches the redirect URI exactly against
// its registered post-logout URIs. A request without a redirect URI passes
// untouched.
func (v *PostLogoutRedirectValidator) Validate(ctx context.Context, vc *ValidationContext) *oidc.RequestError {
	requested := vc.Request.PostLogoutRedirectURI
	if requested == "" {
		return nil
	}

	if vc.ClientID == "" {
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient,
			"post_logout_redirect_uri requires an identified client")
	}

	client, err := v.clients.TryGetClient(ctx, vc.ClientID)
	if err != nil {
		v.logger.Error("client lookup failed", "client_id", vc.ClientID, "error", err)
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient, "client could not be resolved")
	}
	if client == nil {
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient, "unknown client")
	}
	vc.ClientInfo = client

	for _, registered := range client.PostLogoutRedirectURIs {
		if requested == registered {
			vc.PostLogoutRedirectURI = requested
			return nil
		}
	}

	v.logger.Warn("post_logout_redirect_uri does not match client registration",
		"client_id", client.ClientID, "post_logout_redirect_uri", requested)
	return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
		"post_logout_redirect_uri is not registered for this client")
}
