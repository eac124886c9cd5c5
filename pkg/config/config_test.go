// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Issuer: "https://op.example.com",
		Clients: []ClientEntry{
			{
				ID:            "client_123",
				RedirectURIs:  []string{"https://client.example.com/cb"},
				ResponseTypes: []string{"code", "code id_token"},
			},
		},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "RS256", cfg.Signing.Algorithm)
	assert.Equal(t, time.Hour, cfg.Lifetimes.AccessToken)
	assert.Equal(t, 5*time.Minute, cfg.Lifetimes.AuthorizationCode)
	assert.Equal(t, 10*time.Minute, cfg.Lifetimes.PushedRequest)
	assert.Equal(t, 30*24*time.Hour, cfg.Lifetimes.RefreshToken)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing issuer",
			mutate:  func(c *Config) { c.Issuer = "" },
			wantErr: "issuer",
		},
		{
			name:    "relative issuer",
			mutate:  func(c *Config) { c.Issuer = "/op" },
			wantErr: "absolute",
		},
		{
			name:    "issuer with query",
			mutate:  func(c *Config) { c.Issuer = "https://op.example.com?tenant=a" },
			wantErr: "query or fragment",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "dynamo" },
			wantErr: "unknown backend",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: "requires an address",
		},
		{
			name:    "unsupported signing algorithm",
			mutate:  func(c *Config) { c.Signing.Algorithm = "HS256" },
			wantErr: "unsupported algorithm",
		},
		{
			name:    "client without id",
			mutate:  func(c *Config) { c.Clients[0].ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "client without redirect uris",
			mutate:  func(c *Config) { c.Clients[0].RedirectURIs = nil },
			wantErr: "redirect_uri",
		},
		{
			name:    "client with relative redirect uri",
			mutate:  func(c *Config) { c.Clients[0].RedirectURIs = []string{"/cb"} },
			wantErr: "absolute URL",
		},
		{
			name:    "client with unknown response type component",
			mutate:  func(c *Config) { c.Clients[0].ResponseTypes = []string{"code unknown"} },
			wantErr: "unknown component",
		},
		{
			name: "duplicate client id",
			mutate: func(c *Config) {
				c.Clients = append(c.Clients, c.Clients[0])
			},
			wantErr: "duplicate id",
		},
		{
			name: "back channel logout without uri",
			mutate: func(c *Config) {
				c.Clients[0].BackChannelLogout = &LogoutChannelEntry{RequiresSessionID: true}
			},
			wantErr: "back_channel_logout",
		},
		{
			name: "scope without name",
			mutate: func(c *Config) {
				c.Scopes = []ScopeEntry{{ClaimTypes: []string{"email"}}}
			},
			wantErr: "name is required",
		},
		{
			name: "resource with invalid uri",
			mutate: func(c *Config) {
				c.Resources = []ResourceEntry{{URI: "::not-a-uri"}}
			},
			wantErr: "invalid uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientInfoConversion(t *testing.T) {
	t.Parallel()

	sliding := 12 * time.Hour
	required := true
	cfg := validConfig()
	cfg.Clients[0] = ClientEntry{
		ID:                     "client_123",
		Secrets:                []string{"s3cret"},
		RedirectURIs:           []string{"https://client.example.com/cb"},
		PostLogoutRedirectURIs: []string{"https://client.example.com/bye"},
		ResponseTypes:          []string{"code", "code id_token token"},
		PKCERequired:           &required,
		AccessTokenTTL:         30 * time.Minute,
		IdentityTokenAlgorithm: "ES256",
		RefreshToken: RefreshTokenEntry{
			SlidingTTL: &sliding,
			AllowReuse: true,
		},
		BackChannelLogout: &LogoutChannelEntry{
			URI:               "https://client.example.com/bc-logout",
			RequiresSessionID: true,
			TokenTTL:          2 * time.Minute,
		},
	}
	require.NoError(t, cfg.Validate())

	infos := cfg.ClientInfos()
	require.Len(t, infos, 1)
	info := infos[0]

	assert.Equal(t, "client_123", info.ClientID)
	assert.Equal(t, [][]string{{"code"}, {"code", "id_token", "token"}}, info.AllowedResponseTypes)
	assert.Equal(t, "s3cret", info.ClientSecrets[0].Value)
	assert.Equal(t, 30*time.Minute, info.AccessTokenExpiresIn)
	// Unset per-client lifetimes fall back to the server wide defaults.
	assert.Equal(t, time.Hour, info.IdentityTokenExpiresIn)
	assert.Equal(t, 30*24*time.Hour, info.RefreshToken.AbsoluteExpiresIn)
	require.NotNil(t, info.RefreshToken.SlidingExpiresIn)
	assert.Equal(t, sliding, *info.RefreshToken.SlidingExpiresIn)
	assert.True(t, info.RefreshToken.AllowReuse)
	require.NotNil(t, info.BackChannelLogout)
	assert.Equal(t, "https://client.example.com/bc-logout", info.BackChannelLogout.URI)
	assert.True(t, info.BackChannelLogout.RequiresSessionID)
	assert.Nil(t, info.FrontChannelLogout)
	assert.True(t, info.PKCEMandatory())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	raw := `
issuer: https://op.example.com
listen_address: ":9443"
storage:
  backend: redis
  redis:
    address: localhost:6379
    key_prefix: "authkeel:"
lifetimes:
  access_token: 15m
clients:
  - id: client_123
    redirect_uris:
      - https://client.example.com/cb
    response_types:
      - code
      - code id_token
    offline_access_allowed: true
scopes:
  - name: email
    claim_types: [email, email_verified]
resources:
  - uri: https://api.example.com
    scopes:
      - name: api.read
`
	path := filepath.Join(t.TempDir(), "authkeel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://op.example.com", cfg.Issuer)
	assert.Equal(t, ":9443", cfg.ListenAddress)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "authkeel:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Lifetimes.AccessToken)

	infos := cfg.ClientInfos()
	require.Len(t, infos, 1)
	require.NotNil(t, infos[0].OfflineAccessAllowed)
	assert.True(t, infos[0].OfflineAccessPermitted())

	scopes := NewStaticScopes(cfg.ScopeDefinitions())
	def, ok := scopes.TryGet("email")
	require.True(t, ok)
	assert.Equal(t, []string{"email", "email_verified"}, def.ClaimTypes)

	resources := NewStaticResources(cfg.ResourceDefinitions())
	res, ok := resources.TryGet("https://api.example.com")
	require.True(t, ok)
	_, ok = res.FindScope("api.read")
	assert.True(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
