// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
)

const testIssuer = "https://op.example.com"

// seqIDGenerator mints id-1, id-2, ... so tests can predict jti values.
type seqIDGenerator struct {
	n int
}

func (g *seqIDGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTestFormatter(t *testing.T) *josekit.ServiceFormatter {
	t.Helper()
	resolver, err := keys.NewEphemeralResolver()
	require.NoError(t, err)
	return josekit.NewServiceFormatter(resolver, nil, slog.Default())
}

// parseToken decodes a compact JWS without verifying the signature; the
// formatter's signing behavior is covered by its own tests.
func parseToken(t *testing.T, raw string) (josekit.Claims, jose.Header) {
	t.Helper()
	sig, err := jose.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256, jose.ES256})
	require.NoError(t, err)
	require.Len(t, sig.Signatures, 1)

	var claims josekit.Claims
	require.NoError(t, json.Unmarshal(sig.UnsafePayloadWithoutVerification(), &claims))
	return claims, sig.Signatures[0].Header
}

func headerType(t *testing.T, h jose.Header) string {
	t.Helper()
	typ, _ := h.ExtraHeaders[jose.HeaderType].(string)
	return typ
}

func claimTime(t *testing.T, c josekit.Claims, name string) time.Time {
	t.Helper()
	v, ok := c.Time(name)
	require.True(t, ok, "claim %s missing or not a numeric date", name)
	return v
}

func testSession() *oidc.AuthSession {
	verified := true
	return &oidc.AuthSession{
		Subject:            "user-1",
		SessionID:          "sess-1",
		AuthenticationTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		IdentityProvider:   "corp-idp",
		Email:              "user@example.com",
		EmailVerified:      &verified,
		ACR:                "urn:acr:mfa",
		AMR:                []string{"pwd", "otp"},
	}
}
