// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

// AuthorizationValidationContext accumulates validated state as the request
// moves through the validator chain. It is strictly request-local.
//
// ClientInfo and FlowType are write-once: reading them before the owning
// validator has run, or setting them twice, is a bug in the chain ordering
// and panics rather than producing a half-validated request.
type AuthorizationValidationContext struct {
	// Request is the immutable inbound request.
	Request *AuthorizationRequest

	clientInfo  *ClientInfo
	flowType    FlowType
	flowTypeSet bool

	// ResponseMode is the negotiated delivery mechanism. The flow type
	// validator seeds it with the flow default; the response mode validator
	// may replace it with the value the request carried.
	ResponseMode string

	// ValidRedirectURI is the redirect URI confirmed against the client's
	// registration. Never empty after a successful validation run.
	ValidRedirectURI string

	// Scope holds the resolved scope definitions, preserving request order
	// and duplicates.
	Scope []ScopeDefinition

	// Resources holds the resolved resource definitions.
	Resources []ResourceDefinition
}

// NewValidationContext wraps a request for a validation run.
func NewValidationContext(request *AuthorizationRequest) *AuthorizationValidationContext {
	return &AuthorizationValidationContext{Request: request}
}

// ClientInfo returns the validated client. Panics when the client validator
// has not populated it yet.
func (c *AuthorizationValidationContext) ClientInfo() *ClientInfo {
	if c.clientInfo == nil {
		panic("oidc: ClientInfo accessed before the client validator ran")
	}
	return c.clientInfo
}

// SetClientInfo records the validated client. Panics on a second write.
func (c *AuthorizationValidationContext) SetClientInfo(info *ClientInfo) {
	if c.clientInfo != nil {
		panic("oidc: ClientInfo set twice")
	}
	c.clientInfo = info
}

// HasClientInfo reports whether the client validator has run.
func (c *AuthorizationValidationContext) HasClientInfo() bool {
	return c.clientInfo != nil
}

// FlowType returns the determined flow. Panics when the flow type validator
// has not populated it yet.
func (c *AuthorizationValidationContext) FlowType() FlowType {
	if !c.flowTypeSet {
		panic("oidc: FlowType accessed before the flow type validator ran")
	}
	return c.flowType
}

// SetFlowType records the determined flow. Panics on a second write.
func (c *AuthorizationValidationContext) SetFlowType(flow FlowType) {
	if c.flowTypeSet {
		panic("oidc: FlowType set twice")
	}
	c.flowType = flow
	c.flowTypeSet = true
}

// HasFlowType reports whether the flow type validator has run.
func (c *AuthorizationValidationContext) HasFlowType() bool {
	return c.flowTypeSet
}

// ScopeNames flattens the resolved scope back to its string values.
func (c *AuthorizationValidationContext) ScopeNames() []string {
	if len(c.Scope) == 0 {
		return nil
	}
	names := make([]string, len(c.Scope))
	for i, s := range c.Scope {
		names[i] = s.Name
	}
	return names
}

// ResourceURIs flattens the resolved resources back to their URIs.
func (c *AuthorizationValidationContext) ResourceURIs() []string {
	if len(c.Resources) == 0 {
		return nil
	}
	uris := make([]string, len(c.Resources))
	for i, r := range c.Resources {
		uris[i] = r.URI
	}
	return uris
}

// ValidAuthorizationRequest is a request that survived the full validator
// chain, paired with its validation context. Only the processor consumes it.
type ValidAuthorizationRequest struct {
	Context *AuthorizationValidationContext
}

// Request returns the underlying immutable request.
func (v *ValidAuthorizationRequest) Request() *AuthorizationRequest {
	return v.Context.Request
}
