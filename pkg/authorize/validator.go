// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorize implements the authorization endpoint pipeline: PAR/JAR
// dereference, the ordered validator chain, and response issuance.
package authorize

import (
	"context"
	"log/slog"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ContextValidator is a single stage of the validator chain. A stage reads
// the request, enriches the validation context, and reports the first
// violation it finds. A nil return means the stage passed.
//
// Stages run in a fixed order and depend on the side effects of earlier
// stages; see NewChain for the canonical ordering.
type ContextValidator interface {
	Validate(ctx context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError
}

// Chain runs validators in order and stops at the first error, attaching the
// delivery details (redirect URI and response mode) accumulated so far.
type Chain struct {
	validators []ContextValidator
}

// NewChain composes validators. Order matters: callers almost always want
// DefaultChain instead.
func NewChain(validators ...ContextValidator) *Chain {
	return &Chain{validators: validators}
}

// DefaultChain wires the canonical validator ordering. Later validators rely
// on state populated by earlier ones, so the order is load-bearing.
func DefaultChain(clients oidc.ClientInfoProvider, scopes oidc.ScopeManager, resources oidc.ResourceManager, logger *slog.Logger) *Chain {
	return NewChain(
		NewClientValidator(clients, logger),
		NewRedirectURIValidator(logger),
		NewFlowTypeValidator(),
		NewResponseModeValidator(logger),
		NewNonceValidator(),
		NewPkceValidator(),
		NewScopeValidator(scopes, resources),
		NewResourceValidator(resources),
	)
}

// Validate runs the chain. On failure the returned error carries the redirect
// URI when one has been validated, and the best response mode known at the
// point of failure (query when nothing better is known).
func (c *Chain) Validate(ctx context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	for _, v := range c.validators {
		if reqErr := v.Validate(ctx, vc); reqErr != nil {
			return deliverable(reqErr, vc)
		}
	}
	return nil
}

// deliverable fills in the error's delivery details from the context state
// accumulated before the failure.
func deliverable(reqErr *oidc.RequestError, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	if reqErr.RedirectURI == "" {
		reqErr.RedirectURI = vc.ValidRedirectURI
	}
	if reqErr.ResponseMode == "" {
		reqErr.ResponseMode = vc.ResponseMode
	}
	if reqErr.ResponseMode == "" {
		reqErr.ResponseMode = oidc.ResponseModeQuery
	}
	return reqErr
}
