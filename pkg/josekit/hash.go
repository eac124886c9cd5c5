// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package josekit

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
)

// TokenHash computes the c_hash / at_hash value binding an authorization
// code or access token into an ID token (OIDC Core Sections 3.3.2.11 and
// 3.1.3.6): base64url of the left half of the hash whose size pairs with the
// signing algorithm.
func TokenHash(signingAlg, value string) (string, error) {
	var h hash.Hash
	switch signingAlg {
	case "RS256", "ES256", "PS256":
		h = sha256.New()
	case "RS384", "ES384", "PS384":
		h = sha512.New384()
	case "RS512", "ES512", "PS512":
		h = sha512.New()
	default:
		return "", fmt.Errorf("no hash pairing for signing algorithm %s", signingAlg)
	}

	h.Write([]byte(value))
	digest := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(digest[:len(digest)/2]), nil
}
