// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"slices"
	"time"
)

// AuthSession is the authenticated end-user session as established by the
// (external) authentication service.
type AuthSession struct {
	// Subject is the end-user identifier.
	Subject string

	// SessionID identifies this browser session; carried as the sid claim.
	SessionID string

	// AuthenticationTime is when the end-user last actively authenticated.
	AuthenticationTime time.Time

	// IdentityProvider names the upstream provider that authenticated the
	// user, carried as the idp claim.
	IdentityProvider string

	// ACR is the authentication context class reference satisfied.
	ACR string

	// AMR lists the authentication methods used.
	AMR []string

	// AffectedClientIDs accumulates every client that obtained tokens within
	// this session; they are all notified on logout.
	AffectedClientIDs []string

	Email         string
	EmailVerified *bool

	// AdditionalClaims are free-form claims merged into issued tokens at top
	// level.
	AdditionalClaims map[string]any
}

// AddAffectedClient records that a client took part in the session. Adding a
// client twice is a no-op.
func (s *AuthSession) AddAffectedClient(clientID string) {
	if !slices.Contains(s.AffectedClientIDs, clientID) {
		s.AffectedClientIDs = append(s.AffectedClientIDs, clientID)
	}
}

// AuthSessionService exposes the current session to the pipelines and allows
// the end-session processor to terminate it.
type AuthSessionService interface {
	// CurrentSession returns the active session, or nil when the user agent
	// is not signed in.
	CurrentSession(ctx context.Context) (*AuthSession, error)

	// SignOut terminates the active session.
	SignOut(ctx context.Context) error
}
