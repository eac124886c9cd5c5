// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// NonceValidator requires a nonce whenever an ID token will be returned from
// the authorization endpoint. The check keys on the exact literal "id_token"
// in response_type; the nonce itself is opaque, so whitespace is a legal
// value while the empty string is not.
type NonceValidator struct{}

// NewNonceValidator builds the nonce stage.
func NewNonceValidator() *NonceValidator {
	return &NonceValidator{}
}

// Validate enforces the nonce requirement (OIDC Core Section 3.2.2.1).
func (v *NonceValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	if !vc.Request.HasResponseType(oidc.ResponseTypeIDToken) {
		return nil
	}
	if vc.Request.Nonce == "" {
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
			"nonce is required when response_type includes id_token")
	}
	return nil
}
