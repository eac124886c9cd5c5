// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// PkceValidator enforces the client's PKCE policy at authorization time. The
// challenge itself is verified much later, when the code is redeemed; this
// stage only decides whether the request may proceed.
type PkceValidator struct{}

// NewPkceValidator builds the PKCE stage.
func NewPkceValidator() *PkceValidator {
	return &PkceValidator{}
}

// Validate applies two asymmetric rules. A challenge with the exact method
// "plain" is rejected for clients that disallow it, but an absent method is
// not checked even though redemption will treat it as plain: absence is
// permissive, and unknown methods (S256, PLAIN, anything else) pass through
// untouched. A missing challenge is rejected unless the client explicitly
// opted out of PKCE.
func (v *PkceValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	request := vc.Request
	client := vc.ClientInfo()

	if request.CodeChallenge != "" {
		if request.CodeChallengeMethod == oidc.CodeChallengeMethodPlain && !client.PlainPKCEAllowed {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
				"code_challenge_method plain is not allowed for this client")
		}
		return nil
	}

	if client.PKCEMandatory() {
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
			"code_challenge is required for this client")
	}
	return nil
}
