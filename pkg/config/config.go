// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the authorization server
// configuration. The file format maps one to one onto the registered
// client, scope and resource metadata consumed by the request pipeline.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// Default lifetimes applied by Validate when the file leaves them unset.
const (
	DefaultAccessTokenTTL       = time.Hour
	DefaultIdentityTokenTTL     = time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
	DefaultAuthorizationCodeTTL = 5 * time.Minute
	DefaultPushedRequestTTL     = 10 * time.Minute
)

// Config is the fully resolved server configuration.
type Config struct {
	// Issuer is the issuer identifier stamped into the iss claim of every
	// token. Must be an absolute https URL without query or fragment.
	Issuer string `mapstructure:"issuer"`

	// ListenAddress is the host:port the HTTP server binds.
	ListenAddress string `mapstructure:"listen_address"`

	// Signing selects the token signing key material.
	Signing SigningConfig `mapstructure:"signing"`

	// Storage selects the backing store for codes, pushed requests and
	// token status.
	Storage StorageConfig `mapstructure:"storage"`

	// Lifetimes holds server wide defaults. Per client settings take
	// precedence where both exist.
	Lifetimes LifetimeConfig `mapstructure:"lifetimes"`

	// Clients are the statically registered relying parties.
	Clients []ClientEntry `mapstructure:"clients"`

	// Scopes are the globally registered scopes.
	Scopes []ScopeEntry `mapstructure:"scopes"`

	// Resources are the registered resource indicators.
	Resources []ResourceEntry `mapstructure:"resources"`
}

// SigningConfig selects the JWT signing key.
type SigningConfig struct {
	// KeyFile is a path to a PEM encoded private key. Empty generates an
	// ephemeral key at startup, suitable only for development.
	KeyFile string `mapstructure:"key_file"`

	// KeyID overrides the kid derived from the key. Optional.
	KeyID string `mapstructure:"key_id"`

	// Algorithm is the JWS algorithm, default RS256.
	Algorithm string `mapstructure:"algorithm"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`

	// Redis applies when Backend is "redis".
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig carries redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// KeyPrefix namespaces every key written by this server.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LifetimeConfig holds server wide token lifetimes.
type LifetimeConfig struct {
	AccessToken       time.Duration `mapstructure:"access_token"`
	IdentityToken     time.Duration `mapstructure:"identity_token"`
	RefreshToken      time.Duration `mapstructure:"refresh_token"`
	AuthorizationCode time.Duration `mapstructure:"authorization_code"`
	PushedRequest     time.Duration `mapstructure:"pushed_request"`
}

// ClientEntry is the file representation of a registered client.
type ClientEntry struct {
	ID                     string   `mapstructure:"id"`
	Secrets                []string `mapstructure:"secrets"`
	RedirectURIs           []string `mapstructure:"redirect_uris"`
	PostLogoutRedirectURIs []string `mapstructure:"post_logout_redirect_uris"`

	// ResponseTypes lists the allowed response_type values, each entry a
	// space separated combination such as "code id_token".
	ResponseTypes []string `mapstructure:"response_types"`

	PKCERequired         *bool `mapstructure:"pkce_required"`
	PlainPKCEAllowed     bool  `mapstructure:"plain_pkce_allowed"`
	OfflineAccessAllowed *bool `mapstructure:"offline_access_allowed"`

	AccessTokenTTL   time.Duration `mapstructure:"access_token_ttl"`
	IdentityTokenTTL time.Duration `mapstructure:"identity_token_ttl"`

	IdentityTokenAlgorithm string `mapstructure:"identity_token_algorithm"`
	ForceUserClaims        bool   `mapstructure:"force_user_claims"`

	RefreshToken RefreshTokenEntry `mapstructure:"refresh_token"`

	BackChannelLogout  *LogoutChannelEntry `mapstructure:"back_channel_logout"`
	FrontChannelLogout *LogoutChannelEntry `mapstructure:"front_channel_logout"`

	JwksURI string `mapstructure:"jwks_uri"`
}

// RefreshTokenEntry is the file representation of a refresh token policy.
type RefreshTokenEntry struct {
	AbsoluteTTL time.Duration  `mapstructure:"absolute_ttl"`
	SlidingTTL  *time.Duration `mapstructure:"sliding_ttl"`
	AllowReuse  bool           `mapstructure:"allow_reuse"`
}

// LogoutChannelEntry configures one logout notification channel.
type LogoutChannelEntry struct {
	URI               string        `mapstructure:"uri"`
	RequiresSessionID bool          `mapstructure:"requires_session_id"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
}

// ScopeEntry is the file representation of a registered scope.
type ScopeEntry struct {
	Name       string   `mapstructure:"name"`
	ClaimTypes []string `mapstructure:"claim_types"`
}

// ResourceEntry is the file representation of a registered resource.
type ResourceEntry struct {
	URI    string       `mapstructure:"uri"`
	Scopes []ScopeEntry `mapstructure:"scopes"`
}

// Validate applies defaults and checks the configuration for internal
// consistency. It mutates the receiver.
func (c *Config) Validate() error {
	c.applyDefaults()

	if err := validateIssuer(c.Issuer); err != nil {
		return fmt.Errorf("issuer: %w", err)
	}

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage: redis backend requires an address")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}

	if !supportedSigningAlgorithm(c.Signing.Algorithm) {
		return fmt.Errorf("signing: unsupported algorithm %q", c.Signing.Algorithm)
	}

	seen := make(map[string]struct{}, len(c.Clients))
	for i := range c.Clients {
		entry := &c.Clients[i]
		if err := entry.validate(); err != nil {
			return fmt.Errorf("client %d: %w", i, err)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("client %d: duplicate id %q", i, entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}

	for i, s := range c.Scopes {
		if s.Name == "" {
			return fmt.Errorf("scope %d: name is required", i)
		}
	}
	for i, r := range c.Resources {
		if _, err := url.ParseRequestURI(r.URI); err != nil {
			return fmt.Errorf("resource %d: invalid uri %q", i, r.URI)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Signing.Algorithm == "" {
		c.Signing.Algorithm = "RS256"
	}
	if c.Lifetimes.AccessToken == 0 {
		c.Lifetimes.AccessToken = DefaultAccessTokenTTL
	}
	if c.Lifetimes.IdentityToken == 0 {
		c.Lifetimes.IdentityToken = DefaultIdentityTokenTTL
	}
	if c.Lifetimes.RefreshToken == 0 {
		c.Lifetimes.RefreshToken = DefaultRefreshTokenTTL
	}
	if c.Lifetimes.AuthorizationCode == 0 {
		c.Lifetimes.AuthorizationCode = DefaultAuthorizationCodeTTL
	}
	if c.Lifetimes.PushedRequest == 0 {
		c.Lifetimes.PushedRequest = DefaultPushedRequestTTL
	}
}

func validateIssuer(issuer string) error {
	if issuer == "" {
		return fmt.Errorf("required")
	}
	u, err := url.Parse(issuer)
	if err != nil {
		return fmt.Errorf("not a URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("must not carry query or fragment")
	}
	return nil
}

func supportedSigningAlgorithm(alg string) bool {
	switch alg {
	case "RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256", "PS384", "PS512":
		return true
	}
	return false
}

func (e *ClientEntry) validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(e.RedirectURIs) == 0 {
		return fmt.Errorf("at least one redirect_uri is required")
	}
	for _, raw := range e.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("redirect_uri %q must be an absolute URL", raw)
		}
	}
	if len(e.ResponseTypes) == 0 {
		return fmt.Errorf("at least one response_type is required")
	}
	for _, rt := range e.ResponseTypes {
		for _, component := range strings.Fields(rt) {
			switch component {
			case "code", "token", "id_token":
			default:
				return fmt.Errorf("response_type %q: unknown component %q", rt, component)
			}
		}
	}
	if e.IdentityTokenAlgorithm != "" && !supportedSigningAlgorithm(e.IdentityTokenAlgorithm) {
		return fmt.Errorf("unsupported identity_token_algorithm %q", e.IdentityTokenAlgorithm)
	}
	if e.BackChannelLogout != nil && e.BackChannelLogout.URI == "" {
		return fmt.Errorf("back_channel_logout requires a uri")
	}
	if e.FrontChannelLogout != nil && e.FrontChannelLogout.URI == "" {
		return fmt.Errorf("front_channel_logout requires a uri")
	}
	return nil
}

// ClientInfos converts the registered client entries into the runtime
// client metadata, folding in server wide lifetime defaults.
func (c *Config) ClientInfos() []*oidc.ClientInfo {
	infos := make([]*oidc.ClientInfo, 0, len(c.Clients))
	for i := range c.Clients {
		infos = append(infos, c.Clients[i].clientInfo(c.Lifetimes))
	}
	return infos
}

func (e *ClientEntry) clientInfo(defaults LifetimeConfig) *oidc.ClientInfo {
	info := &oidc.ClientInfo{
		ClientID:                             e.ID,
		RedirectURIs:                         e.RedirectURIs,
		PostLogoutRedirectURIs:               e.PostLogoutRedirectURIs,
		PKCERequired:                         e.PKCERequired,
		PlainPKCEAllowed:                     e.PlainPKCEAllowed,
		OfflineAccessAllowed:                 e.OfflineAccessAllowed,
		AccessTokenExpiresIn:                 orDuration(e.AccessTokenTTL, defaults.AccessToken),
		IdentityTokenExpiresIn:               orDuration(e.IdentityTokenTTL, defaults.IdentityToken),
		IdentityTokenSignedResponseAlgorithm: e.IdentityTokenAlgorithm,
		ForceUserClaimsInIdentityToken:       e.ForceUserClaims,
		JwksURI:                              e.JwksURI,
	}

	for _, rt := range e.ResponseTypes {
		info.AllowedResponseTypes = append(info.AllowedResponseTypes, strings.Fields(rt))
	}
	for _, secret := range e.Secrets {
		info.ClientSecrets = append(info.ClientSecrets, oidc.ClientSecret{Value: secret})
	}

	info.RefreshToken = oidc.RefreshTokenPolicy{
		AbsoluteExpiresIn: orDuration(e.RefreshToken.AbsoluteTTL, defaults.RefreshToken),
		SlidingExpiresIn:  e.RefreshToken.SlidingTTL,
		AllowReuse:        e.RefreshToken.AllowReuse,
	}

	if bc := e.BackChannelLogout; bc != nil {
		info.BackChannelLogout = &oidc.BackChannelLogoutOptions{
			URI:                  bc.URI,
			RequiresSessionID:    bc.RequiresSessionID,
			LogoutTokenExpiresIn: bc.TokenTTL,
		}
	}
	if fc := e.FrontChannelLogout; fc != nil {
		info.FrontChannelLogout = &oidc.FrontChannelLogoutOptions{
			URI:               fc.URI,
			RequiresSessionID: fc.RequiresSessionID,
		}
	}

	return info
}

// ScopeDefinitions converts the registered scope entries.
func (c *Config) ScopeDefinitions() []oidc.ScopeDefinition {
	defs := make([]oidc.ScopeDefinition, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		defs = append(defs, oidc.ScopeDefinition{Name: s.Name, ClaimTypes: s.ClaimTypes})
	}
	return defs
}

// ResourceDefinitions converts the registered resource entries.
func (c *Config) ResourceDefinitions() []oidc.ResourceDefinition {
	defs := make([]oidc.ResourceDefinition, 0, len(c.Resources))
	for _, r := range c.Resources {
		def := oidc.ResourceDefinition{URI: r.URI}
		for _, s := range r.Scopes {
			def.Scopes = append(def.Scopes, oidc.ScopeDefinition{Name: s.Name, ClaimTypes: s.ClaimTypes})
		}
		defs = append(defs, def)
	}
	return defs
}

func orDuration(d, fallback time.Duration) time.Duration {
	if d != 0 {
		return d
	}
	return fallback
}
