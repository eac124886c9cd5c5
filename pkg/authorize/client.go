// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ClientValidator resolves the requesting client and seeds the context with
// its registration. Every later validator depends on this stage.
type ClientValidator struct {
	clients oidc.ClientInfoProvider
	logger  *slog.Logger
}

// NewClientValidator builds the chain's first stage.
func NewClientValidator(clients oidc.ClientInfoProvider, logger *slog.Logger) *ClientValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientValidator{clients: clients, logger: logger}
}

// Validate looks the client up. client_id comparison is case-sensitive; a
// missing or unknown client cannot be redirected to, so the error carries no
// redirect URI.
func (v *ClientValidator) Validate(ctx context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	clientID := vc.Request.ClientID
	if clientID == "" {
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient, "client_id is required")
	}

	client, err := v.clients.TryGetClient(ctx, clientID)
	if err != nil {
		v.logger.Error("client lookup failed", "client_id", clientID, "error", err)
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient, "client could not be resolved")
	}
	if client == nil {
		return oidc.NewRequestError(oidc.ErrorCodeUnauthorizedClient, "unknown client")
	}

	vc.SetClientInfo(client)
	return nil
}
