// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ResponseModeValidator honours a response_mode the request carried, after
// checking it against the flow. An absent response_mode keeps the flow
// default seeded by the flow type validator.
type ResponseModeValidator struct {
	logger *slog.Logger
}

// NewResponseModeValidator builds the response mode stage.
func NewResponseModeValidator(logger *slog.Logger) *ResponseModeValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseModeValidator{logger: logger}
}

// Validate checks the requested response mode. Matching is case-sensitive.
// query is forbidden for flows that place tokens in the response, because a
// query string leaks through Referer headers and server logs.
func (v *ResponseModeValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	requested := vc.Request.ResponseMode
	if requested == "" {
		return nil
	}

	switch requested {
	case oidc.ResponseModeQuery, oidc.ResponseModeFragment, oidc.ResponseModeFormPost:
	default:
		v.logger.Warn("unknown response_mode requested", "response_mode", requested)
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest, "unsupported response_mode: "+requested)
	}

	if requested == oidc.ResponseModeQuery && vc.FlowType() != oidc.FlowAuthorizationCode {
		v.logger.Warn("query response_mode rejected for token-bearing flow",
			"flow", vc.FlowType().String())
		return oidc.NewRequestError(oidc.ErrorCodeInvalidRequest,
			"response_mode query is not allowed when the response contains tokens")
	}

	vc.ResponseMode = requested
	return nil
}
