// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package endsession

import (
	"context"
	"log/slog"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// HintValidator verifies a raw id_token_hint. The hint may be long expired
// by the time the user logs out, so implementations must skip the lifetime
// check. josekit.TokenValidator configured without ValidateLifetime
// satisfies it.
type HintValidator interface {
	Validate(ctx context.Context, raw string) (*josekit.JWT, error)
}

// IDTokenHintValidator verifies the id_token_hint and pins down the
// requesting client from its audience.
type IDTokenHintValidator struct {
	hints  HintValidator
	logger *slog.Logger
}

// NewIDTokenHintValidator builds the hint stage.
func NewIDTokenHintValidator(hints HintValidator, logger *slog.Logger) *IDTokenHintValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDTokenHintValidator{hints: hints, logger: logger}
}

// Validate checks the hint when present. A request without a client_id
// adopts the hint's single audience; a request with one must name one of the
// hint's audiences (ordinal comparison).
func (v *IDTokenHintValidator) Validate(ctx context.Context, vc *ValidationContext) *oidc.RequestError {
	raw := vc.Request.IDTokenHint
	if raw == "" {
		return nil
	}

	token, err := v.hints.Validate(ctx, raw)
	if err != nil {
		v.logger.Warn("id_token_hint rejected", "error", err)
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest, "id_token_hint is not a valid token")
	}

	audiences := token.Claims.Audience()
	if vc.ClientID == "" {
		if len(audiences) != 1 {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
				"client_id cannot be inferred from an id_token_hint with multiple audiences")
		}
		vc.ClientID = audiences[0]
	} else if !contains(audiences, vc.ClientID) {
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
			"client_id does not match the id_token_hint audience")
	}

	vc.IDTokenHint = token
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// NewServerHintValidator builds the validator for id_token_hint values this
// server issued. Lifetime checking stays off: users log out after their ID
// token expired all the time. Audience checking also stays off, because the
// hint stage interprets the audience itself.
func NewServerHintValidator(issuer oidc.IssuerProvider, resolver keys.KeyResolver) *josekit.TokenValidator {
	return josekit.NewTokenValidator(josekit.ValidationParameters{
		Options: josekit.ValidateSignature | josekit.ValidateIssuer,
		ValidateIssuer: func(ctx context.Context, tokenIssuer string) (bool, error) {
			expected, err := issuer.Issuer(ctx)
			if err != nil {
				return false, err
			}
			return tokenIssuer == expected, nil
		},
		ResolveIssuerKeys: func(ctx context.Context, _ string) (*jose.JSONWebKeySet, error) {
			return keys.PublicJWKS(ctx, resolver)
		},
	})
}
