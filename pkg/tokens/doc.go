// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package tokens implements the token services of the authorization server:
// access tokens, identity tokens, refresh tokens with rotation, and logout
// tokens for back-channel notification. Services build claims, hand them to
// the JOSE formatter for signing, and reconstruct sessions and grants from
// previously issued tokens.
package tokens
