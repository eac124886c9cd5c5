// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package josekit is the JOSE layer of the authorization server: the claims
// model shared by every issued token, the formatter that signs (and
// optionally encrypts) tokens, the generic JWT validator, and the validator
// specialization for client-issued JWTs such as request objects and client
// assertions.
package josekit
