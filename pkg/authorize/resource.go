// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// ResourceValidator resolves the requested resource indicators (RFC 8707).
// A request without resources is fine; a request naming an unregistered one
// is not.
type ResourceValidator struct {
	resources oidc.ResourceManager
}

// NewResourceValidator builds the resource stage.
func NewResourceValidator(resources oidc.ResourceManager) *ResourceValidator {
	return &ResourceValidator{resources: resources}
}

// Validate resolves every requested resource URI.
func (v *ResourceValidator) Validate(_ context.Context, vc *oidc.AuthorizationValidationContext) *oidc.RequestError {
	if len(vc.Request.Resources) == 0 {
		return nil
	}

	resolved := make([]oidc.ResourceDefinition, 0, len(vc.Request.Resources))
	for _, uri := range vc.Request.Resources {
		definition, ok := v.resources.TryGet(uri)
		if !ok {
			return oidc.NewRequestError(oidc.ErrorCodeInvalidTarget, "unknown resource: "+uri)
		}
		resolved = append(resolved, definition)
	}

	vc.Resources = resolved
	return nil
}
