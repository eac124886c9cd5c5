// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

// LogoutContext identifies the session being terminated. It is handed to
// every notified client.
type LogoutContext struct {
	// SessionID is the sid of the terminated session.
	SessionID string

	// SubjectID is the end-user the session belonged to.
	SubjectID string

	// Issuer is this server's issuer identifier, included so relying
	// parties can attribute the logout.
	Issuer string
}
