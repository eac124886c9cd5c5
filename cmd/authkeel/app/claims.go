// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
)

// sessionClaims releases end-user claims straight from the authenticated
// session. Deployments with a user directory should replace this with a
// provider that resolves the subject against it.
type sessionClaims struct{}

func (sessionClaims) GetUserClaims(_ context.Context, session *oidc.AuthSession, scopes []string, _ map[string]*oidc.ClaimDetails, _ *oidc.ClientInfo) (josekit.Claims, error) {
	claims := josekit.Claims{}
	for _, scope := range scopes {
		if scope == oidc.ScopeEmail && session.Email != "" {
			claims["email"] = session.Email
			if session.EmailVerified != nil {
				claims["email_verified"] = *session.EmailVerified
			}
		}
	}
	return claims, nil
}
