// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import "context"

// ScopeDefinition describes a registered scope and the claim types it
// unlocks.
type ScopeDefinition struct {
	// Name is the scope value as it appears on the wire.
	Name string

	// ClaimTypes lists the claims released when the scope is granted.
	ClaimTypes []string
}

// ResourceDefinition describes a registered resource (RFC 8707) and the
// scopes it defines.
type ResourceDefinition struct {
	// URI is the resource indicator.
	URI string

	// Scopes are scopes defined by the resource itself, resolvable even when
	// not registered globally.
	Scopes []ScopeDefinition
}

// FindScope looks a scope up within the resource's own scope set.
func (r *ResourceDefinition) FindScope(name string) (ScopeDefinition, bool) {
	for _, s := range r.Scopes {
		if s.Name == name {
			return s, true
		}
	}
	return ScopeDefinition{}, false
}

// ScopeManager resolves globally registered scopes.
type ScopeManager interface {
	// TryGet returns the definition for name, or false when unregistered.
	TryGet(name string) (ScopeDefinition, bool)
}

// ResourceManager resolves registered resources.
type ResourceManager interface {
	// TryGet returns the definition for the resource URI, or false when
	// unregistered.
	TryGet(uri string) (ResourceDefinition, bool)
}

// IssuerProvider yields the issuer identifier stamped into the iss claim of
// every token. It receives a context because the issuer may depend on the
// inbound request (multi-tenant hosts).
type IssuerProvider interface {
	Issuer(ctx context.Context) (string, error)
}

// StaticIssuer is an IssuerProvider with a fixed value.
type StaticIssuer string

// Issuer returns the fixed issuer identifier.
func (s StaticIssuer) Issuer(context.Context) (string, error) {
	return string(s), nil
}
