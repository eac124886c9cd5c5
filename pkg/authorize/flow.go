// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"strings"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// FlowTypeValidator classifies the response_type into a flow and seeds the
// response mode with the flow's default. The default overwrites whatever the
// request carried; the response mode validator runs later and may re-apply
// the requested value once it has checked it.
type FlowTypeValidator struct{}

// NewFlowTypeValidator builds the flow classification stage.
func NewFlowTypeValidator() *FlowTypeValidator {
	return &FlowTypeValidator{}
}

// Validate determines the flow from the deduplicated response_type
// components. Component matching is case-insensitive.
func (v *FlowTypeValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	request := vc.Request
	if len(request.ResponseType) == 0 {
		return v.unsupported("response_type is required")
	}

	var hasCode, hasIDToken, hasToken bool
	for _, component := range request.ResponseType {
		switch {
		case strings.EqualFold(component, oidc.ResponseTypeCode):
			hasCode = true
		case strings.EqualFold(component, oidc.ResponseTypeIDToken):
			hasIDToken = true
		case strings.EqualFold(component, oidc.ResponseTypeToken):
			hasToken = true
		default:
			return v.unsupported("unknown response_type component: " + component)
		}
	}

	var flow oidc.FlowType
	switch {
	case hasCode && (hasIDToken || hasToken):
		flow = oidc.FlowHybrid
	case hasCode:
		flow = oidc.FlowAuthorizationCode
	default:
		flow = oidc.FlowImplicit
	}

	if !v.registeredFor(vc.ClientInfo(), hasCode, hasIDToken, hasToken) {
		return v.unsupported("client is not registered for this response_type")
	}

	vc.SetFlowType(flow)
	vc.ResponseMode = flow.DefaultResponseMode()
	return nil
}

// registeredFor matches the request's deduplicated component set against the
// client's allowed combinations, ignoring order and case.
func (v *FlowTypeValidator) registeredFor(client *oidc.ClientInfo, hasCode, hasIDToken, hasToken bool) bool {
	for _, allowed := range client.AllowedResponseTypes {
		var code, idToken, token bool
		valid := true
		for _, component := range allowed {
			switch {
			case strings.EqualFold(component, oidc.ResponseTypeCode):
				code = true
			case strings.EqualFold(component, oidc.ResponseTypeIDToken):
				idToken = true
			case strings.EqualFold(component, oidc.ResponseTypeToken):
				token = true
			default:
				valid = false
			}
		}
		if valid && code == hasCode && idToken == hasIDToken && token == hasToken {
			return true
		}
	}
	return false
}

// unsupported errors carry query as the response mode because no flow (and
// hence no flow default) was established.
func (v *FlowTypeValidator) unsupported(description string) *oidc.RequestError {
	reqErr := oidc.NewRequestError(oidc.ErrorCodeUnsupportedResponseType, description)
	reqErr.ResponseMode = oidc.ResponseModeQuery
	return reqErr
}
