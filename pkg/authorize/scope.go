// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ScopeValidator resolves every requested scope to a registered definition.
// Scopes unknown to the global registry may still be defined by one of the
// requested resources. Request order and duplicates are preserved in the
// resolved list.
type ScopeValidator struct {
	scopes    oidc.ScopeManager
	resources oidc.ResourceManager
}

// NewScopeValidator builds the scope stage.
func NewScopeValidator(scopes oidc.ScopeManager, resources oidc.ResourceManager) *ScopeValidator {
	return &ScopeValidator{scopes: scopes, resources: resources}
}

// Validate resolves the scope list. offline_access carries extra policy: it
// is meaningless without a grant the client can come back with, so the
// implicit flow can never have it, and the client registration must allow
// it. That policy check runs over the whole list before any resolution so
// its diagnostic is the one the client sees, wherever offline_access sits.
func (v *ScopeValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	client := vc.ClientInfo()

	for _, name := range vc.Request.Scope {
		if name != oidc.ScopeOfflineAccess {
			continue
		}
		if vc.FlowType() == oidc.FlowImplicit {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidScope,
				"offline_access cannot be granted to the implicit flow")
		}
		if !client.OfflineAccessPermitted() {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidScope,
				"client is not allowed to request offline_access")
		}
		break
	}

	resolved := make([]oidc.ScopeDefinition, 0, len(vc.Request.Scope))
	for _, name := range vc.Request.Scope {
		definition, ok := v.resolve(name, vc.Request.Resources)
		if !ok {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidScope, "unknown scope: "+name)
		}
		resolved = append(resolved, definition)
	}

	vc.Scope = resolved
	return nil
}

func (v *ScopeValidator) resolve(name string, resourceURIs []string) (oidc.ScopeDefinition, bool) {
	if definition, ok := v.scopes.TryGet(name); ok {
		return definition, true
	}
	for _, uri := range resourceURIs {
		resource, ok := v.resources.TryGet(uri)
		if !ok {
			// The resource validator reports unknown resources.
			continue
		}
		if definition, ok := resource.FindScope(name); ok {
			return definition, true
		}
	}
	return oidc.ScopeDefinition{}, false
}
