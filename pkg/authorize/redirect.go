// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// RedirectURIValidator confirms the requested redirect URI against the
// client's registration. Until this stage passes, errors cannot be delivered
// by redirect.
type RedirectURIValidator struct {
	logger *slog.Logger
}

// NewRedirectURIValidator builds the redirect URI stage.
func NewRedirectURIValidator(logger *slog.Logger) *RedirectURIValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectURIValidator{logger: logger}
}

// Validate requires the redirect_uri to match a registered URI. Scheme and
// host compare case-insensitively, path and query case-sensitively, and the
// fragment is ignored (RFC 3986 Section 6.2.1 plus OAuth's simple string
// comparison carve-outs).
func (v *RedirectURIValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	requested := vc.Request.RedirectURI
	client := vc.ClientInfo()

	if requested == "" {
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest, "redirect_uri is required")
	}
	if len(client.RedirectURIs) == 0 {
		v.logger.Warn("client has no registered redirect URIs", "client_id", client.ClientID)
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest, "client has no registered redirect_uri")
	}

	for _, registered := range client.RedirectURIs {
		if redirectURIMatches(requested, registered) {
			vc.ValidRedirectURI = requested
			return nil
		}
	}

	v.logger.Warn("redirect_uri does not match client registration",
		"client_id", client.ClientID, "redirect_uri", requested)
	return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest, "redirect_uri is not registered for this client")
}

func redirectURIMatches(requested, registered string) bool {
	a, errA := url.Parse(requested)
	b, errB := url.Parse(registered)
	if errA != nil || errB != nil {
		return requested == registered
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Host, b.Host) &&
		a.Path == b.Path &&
		a.RawQuery == b.RawQuery
}
