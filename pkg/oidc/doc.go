// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package oidc defines the shared data model for the authorization server:
// authorization and end-session requests, registered client metadata, the
// authenticated session, grants, and the tagged request error delivered back
// to clients through the negotiated response mode.
package oidc
