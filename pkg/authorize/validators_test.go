// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/oidc"
)

type fakeClients map[string]*oidc.ClientInfo

func (f fakeClients) TryGetClient(_ context.Context, id string) (*oidc.ClientInfo, error) {
	return f[id], nil
}

type fakeScopes map[string]oidc.ScopeDefinition

func (f fakeScopes) TryGet(name string) (oidc.ScopeDefinition, bool) {
	def, ok := f[name]
	return def, ok
}

type fakeResources map[string]oidc.ResourceDefinition

func (f fakeResources) TryGet(uri string) (oidc.ResourceDefinition, bool) {
	def, ok := f[uri]
	return def, ok
}

func boolPtr(v bool) *bool { return &v }

const testRedirectURI = "https://client.example.com/cb"

func testClient() *oidc.ClientInfo {
	return &oidc.ClientInfo{
		ClientID:     "client-1",
		RedirectURIs: []string{testRedirectURI},
		AllowedResponseTypes: [][]string{
			{"code"},
			{"id_token"},
			{"id_token", "token"},
			{"code", "id_token"},
		},
		PKCERequired:         boolPtr(false),
		OfflineAccessAllowed: boolPtr(true),
	}
}

func testChain(clients fakeClients) *Chain {
	scopes := fakeScopes{
		"openid":         {Name: "openid"},
		"profile":        {Name: "profile"},
		"offline_access": {Name: "offline_access"},
	}
	resources := fakeResources{
		"https://api.example.com": {
			URI:    "https://api.example.com",
			Scopes: []oidc.ScopeDefinition{{Name: "api.read"}},
		},
	}
	return DefaultChain(clients, scopes, resources, slog.Default())
}

func runChain(t *testing.T, request *oidc.AuthorizationRequest) (*oidc.AuthorizationValidationContext, *oidc.RequestError) {
	t.Helper()
	vc := oidc.NewValidationContext(request)
	reqErr := testChain(fakeClients{"client-1": testClient()}).Validate(context.Background(), vc)
	return vc, reqErr
}

func TestChainHappyPathCodeFlow(t *testing.T) {
	t.Parallel()

	vc, reqErr := runChain(t, &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"code"},
		RedirectURI:  testRedirectURI,
		Scope:        []string{"openid"},
	})

	require.Nil(t, reqErr)
	assert.Equal(t, oidc.FlowAuthorizationCode, vc.FlowType())
	assert.Equal(t, oidc.ResponseModeQuery, vc.ResponseMode)
	assert.Equal(t, testRedirectURI, vc.ValidRedirectURI)
	assert.Equal(t, []string{"openid"}, vc.ScopeNames())
}

func TestChainPkceDowngradeBlocked(t *testing.T) {
	t.Parallel()

	_, reqErr := runChain(t, &oidc.AuthorizationRequest{
		ClientID:            "client-1",
		ResponseType:        []string{"code"},
		RedirectURI:         testRedirectURI,
		CodeChallenge:       "test",
		CodeChallengeMethod: "plain",
	})

	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
	assert.Contains(t, reqErr.Description, "plain")
}

func TestChainMissingNonceInHybrid(t *testing.T) {
	t.Parallel()

	_, reqErr := runChain(t, &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"code", "id_token"},
		RedirectURI:  testRedirectURI,
	})

	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
	assert.Contains(t, reqErr.Description, "nonce")
	assert.Contains(t, reqErr.Description, "id_token")
}

func TestChainQueryForbiddenWithImplicit(t *testing.T) {
	t.Parallel()

	_, reqErr := runChain(t, &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"id_token"},
		ResponseMode: "query",
		Nonce:        "n1",
		RedirectURI:  testRedirectURI,
	})

	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
	assert.Contains(t, reqErr.Description, "query")
}

func TestClientValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		clientID string
	}{
		{name: "missing client_id", clientID: ""},
		{name: "unknown client", clientID: "nope"},
		{name: "case-sensitive lookup", clientID: "CLIENT-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, reqErr := runChain(t, &oidc.AuthorizationRequest{
				ClientID:     tt.clientID,
				ResponseType: []string{"code"},
				RedirectURI:  testRedirectURI,
			})

			require.NotNil(t, reqErr)
			assert.Equal(t, oidc.ErrorCodeUnauthorizedClient, reqErr.Code)
			assert.Empty(t, reqErr.RedirectURI, "an unresolved client cannot be redirected to")
			assert.Equal(t, oidc.ResponseModeQuery, reqErr.ResponseMode)
		})
	}
}

func TestRedirectURIValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		redirectURI string
		wantOK      bool
	}{
		{name: "exact match", redirectURI: testRedirectURI, wantOK: true},
		{name: "scheme and host case-insensitive", redirectURI: "HTTPS://Client.Example.COM/cb", wantOK: true},
		{name: "fragment ignored", redirectURI: testRedirectURI + "#frag", wantOK: true},
		{name: "path is case-sensitive", redirectURI: "https://client.example.com/CB"},
		{name: "different query", redirectURI: testRedirectURI + "?x=1"},
		{name: "missing", redirectURI: ""},
		{name: "unregistered host", redirectURI: "https://evil.example.com/cb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vc, reqErr := runChain(t, &oidc.AuthorizationRequest{
				ClientID:     "client-1",
				ResponseType: []string{"code"},
				RedirectURI:  tt.redirectURI,
			})

			if tt.wantOK {
				require.Nil(t, reqErr)
				assert.Equal(t, tt.redirectURI, vc.ValidRedirectURI)
				return
			}
			require.NotNil(t, reqErr)
			assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
			assert.Empty(t, reqErr.RedirectURI)
		})
	}
}

func TestFlowTypeValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseType []string
		nonce        string
		wantFlow     oidc.FlowType
		wantMode     string
		wantErr      string
	}{
		{
			name:         "code flow",
			responseType: []string{"code"},
			wantFlow:     oidc.FlowAuthorizationCode,
			wantMode:     oidc.ResponseModeQuery,
		},
		{
			name:         "implicit flow defaults to fragment",
			responseType: []string{"id_token"},
			nonce:        "n1",
			wantFlow:     oidc.FlowImplicit,
			wantMode:     oidc.ResponseModeFragment,
		},
		{
			name:         "hybrid flow",
			responseType: []string{"code", "id_token"},
			nonce:        "n1",
			wantFlow:     oidc.FlowHybrid,
			wantMode:     oidc.ResponseModeFragment,
		},
		{
			name:         "components dedupe case-insensitively",
			responseType: []string{"CODE", "code"},
			wantFlow:     oidc.FlowAuthorizationCode,
			wantMode:     oidc.ResponseModeQuery,
		},
		{
			name:         "empty response_type",
			responseType: nil,
			wantErr:      oidc.ErrorCodeUnsupportedResponseType,
		},
		{
			name:         "unknown component",
			responseType: []string{"code", "wat"},
			wantErr:      oidc.ErrorCodeUnsupportedResponseType,
		},
		{
			name:         "combination not registered",
			responseType: []string{"token"},
			nonce:        "n1",
			wantErr:      oidc.ErrorCodeUnsupportedResponseType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vc, reqErr := runChain(t, &oidc.AuthorizationRequest{
				ClientID:     "client-1",
				ResponseType: tt.responseType,
				RedirectURI:  testRedirectURI,
				Nonce:        tt.nonce,
			})

			if tt.wantErr != "" {
				require.NotNil(t, reqErr)
				assert.Equal(t, tt.wantErr, reqErr.Code)
				assert.Equal(t, oidc.ResponseModeQuery, reqErr.ResponseMode,
					"flow errors fall back to query delivery")
				return
			}
			require.Nil(t, reqErr)
			assert.Equal(t, tt.wantFlow, vc.FlowType())
			assert.Equal(t, tt.wantMode, vc.ResponseMode)
		})
	}
}

func TestResponseModeValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseType []string
		responseMode string
		nonce        string
		wantMode     string
		wantErr      bool
	}{
		{
			name:         "form_post with code",
			responseType: []string{"code"},
			responseMode: "form_post",
			wantMode:     oidc.ResponseModeFormPost,
		},
		{
			name:         "form_post with implicit",
			responseType: []string{"id_token"},
			responseMode: "form_post",
			nonce:        "n1",
			wantMode:     oidc.ResponseModeFormPost,
		},
		{
			name:         "query with code",
			responseType: []string{"code"},
			responseMode: "query",
			wantMode:     oidc.ResponseModeQuery,
		},
		{
			name:         "query with hybrid rejected",
			responseType: []string{"code", "id_token"},
			responseMode: "query",
			nonce:        "n1",
			wantErr:      true,
		},
		{
			name:         "unknown mode rejected",
			responseType: []string{"code"},
			responseMode: "jwt",
			wantErr:      true,
		},
		{
			name:         "matching is case-sensitive",
			responseType: []string{"code"},
			responseMode: "Query",
			wantErr:      true,
		},
		{
			name:         "whitespace counts as a value",
			responseType: []string{"code"},
			responseMode: " ",
			wantErr:      true,
		},
		{
			name:         "absent keeps the flow default",
			responseType: []string{"id_token"},
			nonce:        "n1",
			wantMode:     oidc.ResponseModeFragment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vc, reqErr := runChain(t, &oidc.AuthorizationRequest{
				ClientID:     "client-1",
				ResponseType: tt.responseType,
				ResponseMode: tt.responseMode,
				RedirectURI:  testRedirectURI,
				Nonce:        tt.nonce,
			})

			if tt.wantErr {
				require.NotNil(t, reqErr)
				assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
				assert.Equal(t, testRedirectURI, reqErr.RedirectURI,
					"mode errors happen after redirect validation")
				return
			}
			require.Nil(t, reqErr)
			assert.Equal(t, tt.wantMode, vc.ResponseMode)
		})
	}
}

func TestNonceValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseType []string
		nonce        string
		wantErr      bool
	}{
		{name: "nonce present", responseType: []string{"id_token"}, nonce: "n1"},
		{name: "nonce missing", responseType: []string{"id_token"}, wantErr: true},
		{name: "whitespace nonce is opaque and passes", responseType: []string{"id_token"}, nonce: "   "},
		{name: "code flow needs no nonce", responseType: []string{"code"}},
		{
			// The requirement keys on the exact literal; a case variant
			// classifies as implicit but skips the nonce check.
			name:         "uppercase ID_TOKEN skips the check",
			responseType: []string{"ID_TOKEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, reqErr := runChain(t, &oidc.AuthorizationRequest{
				ClientID:     "client-1",
				ResponseType: tt.responseType,
				RedirectURI:  testRedirectURI,
				Nonce:        tt.nonce,
			})

			if tt.wantErr {
				require.NotNil(t, reqErr)
				assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
				return
			}
			assert.Nil(t, reqErr)
		})
	}
}

func TestPkceValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		challenge       string
		method          string
		pkceRequired    *bool
		plainAllowed    bool
		wantErr         bool
		wantDescription string
	}{
		{
			name:      "S256 always passes",
			challenge: "abc",
			method:    "S256",
		},
		{
			name:            "plain banned by default",
			challenge:       "abc",
			method:          "plain",
			wantErr:         true,
			wantDescription: "plain",
		},
		{
			name:         "plain allowed when registered",
			challenge:    "abc",
			method:       "plain",
			plainAllowed: true,
		},
		{
			name:      "absent method is not checked against the plain ban",
			challenge: "abc",
		},
		{
			name:      "uppercase PLAIN is a different method and passes",
			challenge: "abc",
			method:    "PLAIN",
		},
		{
			name:      "unknown methods pass",
			challenge: "abc",
			method:    "custom-method",
		},
		{
			name:    "missing challenge with pkce required",
			wantErr: true,
		},
		{
			name:         "nil pkce_required counts as required",
			pkceRequired: nil,
			wantErr:      true,
		},
		{
			name:         "explicit opt-out",
			pkceRequired: boolPtr(false),
		},
		{
			name:      "whitespace challenge passes the non-empty check",
			challenge: " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := testClient()
			client.PKCERequired = tt.pkceRequired
			client.PlainPKCEAllowed = tt.plainAllowed

			vc := oidc.NewValidationContext(&oidc.AuthorizationRequest{
				ClientID:            "client-1",
				ResponseType:        []string{"code"},
				RedirectURI:         testRedirectURI,
				CodeChallenge:       tt.challenge,
				CodeChallengeMethod: tt.method,
			})
			reqErr := testChain(fakeClients{"client-1": client}).Validate(context.Background(), vc)

			if tt.wantErr {
				require.NotNil(t, reqErr)
				assert.Equal(t, oidc.ErrorCodeInvalidRequest, reqErr.Code)
				if tt.wantDescription != "" {
					assert.Contains(t, reqErr.Description, tt.wantDescription)
				}
				return
			}
			assert.Nil(t, reqErr)
		})
	}
}

func TestScopeValidator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseType []string
		scope        []string
		resources    []string
		nonce        string
		offlineOK    *bool
		wantErr      string
		wantDesc     string
		wantResolved []string
	}{
		{
			name:         "empty scope accepted",
			responseType: []string{"code"},
		},
		{
			name:         "order and duplicates preserved",
			responseType: []string{"code"},
			scope:        []string{"profile", "openid", "profile"},
			wantResolved: []string{"profile", "openid", "profile"},
		},
		{
			name:         "unknown scope",
			responseType: []string{"code"},
			scope:        []string{"openid", "nope"},
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "nope",
		},
		{
			name:         "resource-defined scope resolves",
			responseType: []string{"code"},
			scope:        []string{"api.read"},
			resources:    []string{"https://api.example.com"},
			wantResolved: []string{"api.read"},
		},
		{
			name:         "offline_access in implicit flow",
			responseType: []string{"id_token"},
			nonce:        "n1",
			scope:        []string{"offline_access"},
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "offline_access",
		},
		{
			name:         "offline_access denied by registration",
			responseType: []string{"code"},
			scope:        []string{"offline_access"},
			offlineOK:    boolPtr(false),
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "offline_access",
		},
		{
			name:         "nil offline_access_allowed counts as denied",
			responseType: []string{"code"},
			scope:        []string{"offline_access"},
			offlineOK:    nil,
			wantErr:      oidc.ErrorCodeInvalidScope,
		},
		{
			name:         "offline_access diagnostic precedes unknown-scope",
			responseType: []string{"code"},
			scope:        []string{"nope", "offline_access"},
			offlineOK:    boolPtr(false),
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "offline_access",
		},
		{
			name:         "offline_access policy precedes unknown-scope in implicit flow",
			responseType: []string{"id_token"},
			nonce:        "n1",
			scope:        []string{"nope", "offline_access"},
			offlineOK:    boolPtr(true),
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "offline_access",
		},
		{
			name:         "unknown scope reported once offline_access policy passes",
			responseType: []string{"code"},
			scope:        []string{"nope", "offline_access"},
			offlineOK:    boolPtr(true),
			wantErr:      oidc.ErrorCodeInvalidScope,
			wantDesc:     "nope",
		},
		{
			name:         "offline_access allowed in code flow",
			responseType: []string{"code"},
			scope:        []string{"openid", "offline_access"},
			offlineOK:    boolPtr(true),
			wantResolved: []string{"openid", "offline_access"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := testClient()
			client.OfflineAccessAllowed = tt.offlineOK

			vc := oidc.NewValidationContext(&oidc.AuthorizationRequest{
				ClientID:     "client-1",
				ResponseType: tt.responseType,
				RedirectURI:  testRedirectURI,
				Scope:        tt.scope,
				Resources:    tt.resources,
				Nonce:        tt.nonce,
			})
			reqErr := testChain(fakeClients{"client-1": client}).Validate(context.Background(), vc)

			if tt.wantErr != "" {
				require.NotNil(t, reqErr)
				assert.Equal(t, tt.wantErr, reqErr.Code)
				if tt.wantDesc != "" {
					assert.Contains(t, reqErr.Description, tt.wantDesc)
				}
				return
			}
			require.Nil(t, reqErr)
			assert.Equal(t, tt.wantResolved, vc.ScopeNames())
		})
	}
}

func TestResourceValidator(t *testing.T) {
	t.Parallel()

	t.Run("resolves registered resources", func(t *testing.T) {
		t.Parallel()

		vc, reqErr := runChain(t, &oidc.AuthorizationRequest{
			ClientID:     "client-1",
			ResponseType: []string{"code"},
			RedirectURI:  testRedirectURI,
			Resources:    []string{"https://api.example.com"},
		})

		require.Nil(t, reqErr)
		assert.Equal(t, []string{"https://api.example.com"}, vc.ResourceURIs())
	})

	t.Run("unknown resource", func(t *testing.T) {
		t.Parallel()

		_, reqErr := runChain(t, &oidc.AuthorizationRequest{
			ClientID:     "client-1",
			ResponseType: []string{"code"},
			RedirectURI:  testRedirectURI,
			Resources:    []string{"https://unknown.example.com"},
		})

		require.NotNil(t, reqErr)
		assert.Equal(t, oidc.ErrorCodeInvalidTarget, reqErr.Code)
		assert.Equal(t, testRedirectURI, reqErr.RedirectURI)
	})
}
