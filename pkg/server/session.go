// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

type sessionContextKey struct{}

// ContextWithSession returns a context carrying the authenticated session.
// Authentication middleware installs the session here; ContextSessions reads
// it back for the pipelines.
func ContextWithSession(ctx context.Context, session *oidc.AuthSession) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the session installed by ContextWithSession, or
// nil.
func SessionFromContext(ctx context.Context) *oidc.AuthSession {
	session, _ := ctx.Value(sessionContextKey{}).(*oidc.AuthSession)
	return session
}

// ContextSessions is an AuthSessionService backed by the request context. It
// suits deployments where a front proxy or middleware authenticates the
// end-user before the request reaches these handlers. SignOut only detaches
// the session from the current request; revoking the upstream session is the
// middleware's job.
type ContextSessions struct{}

// CurrentSession returns the session installed in ctx, or nil.
func (ContextSessions) CurrentSession(ctx context.Context) (*oidc.AuthSession, error) {
	return SessionFromContext(ctx), nil
}

// SignOut is a no-op; the context owner controls the session's lifetime.
func (ContextSessions) SignOut(context.Context) error {
	return nil
}
