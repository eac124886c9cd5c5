// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the namespaced key/value store the authorization
// server persists transient state in: pushed authorization requests, token
// status entries and authorized grants. Entries expire absolutely, relative
// to now, or on a sliding window capped by an absolute ceiling.
package storage
