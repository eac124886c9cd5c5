// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

// FlowType classifies an authorization request by its response_type.
type FlowType int

// Flow types per OIDC Core Section 3.
const (
	// FlowAuthorizationCode is response_type=code.
	FlowAuthorizationCode FlowType = iota

	// FlowImplicit is any combination of id_token and token without code.
	FlowImplicit

	// FlowHybrid is code combined with id_token and/or token.
	FlowHybrid
)

// String returns the flow name for logs.
func (f FlowType) String() string {
	switch f {
	case FlowAuthorizationCode:
		return "authorization_code"
	case FlowImplicit:
		return "implicit"
	case FlowHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// DefaultResponseMode is the response mode a flow falls back to when the
// request does not carry a valid one: query for the code flow, fragment for
// flows that place tokens in the response.
func (f FlowType) DefaultResponseMode() string {
	if f == FlowAuthorizationCode {
		return ResponseModeQuery
	}
	return ResponseModeFragment
}
