// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// StaticClients is a ClientInfoProvider backed by the configuration file.
type StaticClients struct {
	byID map[string]*oidc.ClientInfo
}

// NewStaticClients indexes the given clients by ID.
func NewStaticClients(infos []*oidc.ClientInfo) *StaticClients {
	byID := make(map[string]*oidc.ClientInfo, len(infos))
	for _, info := range infos {
		byID[info.ClientID] = info
	}
	return &StaticClients{byID: byID}
}

// TryGetClient returns the client registered under id, or nil when unknown.
func (s *StaticClients) TryGetClient(_ context.Context, id string) (*oidc.ClientInfo, error) {
	return s.byID[id], nil
}

// StaticScopes is a ScopeManager backed by the configuration file.
type StaticScopes struct {
	byName map[string]oidc.ScopeDefinition
}

// NewStaticScopes indexes the given scope definitions by name.
func NewStaticScopes(defs []oidc.ScopeDefinition) *StaticScopes {
	byName := make(map[string]oidc.ScopeDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	return &StaticScopes{byName: byName}
}

// TryGet returns the definition for name, or false when unregistered.
func (s *StaticScopes) TryGet(name string) (oidc.ScopeDefinition, bool) {
	def, ok := s.byName[name]
	return def, ok
}

// StaticResources is a ResourceManager backed by the configuration file.
type StaticResources struct {
	byURI map[string]oidc.ResourceDefinition
}

// NewStaticResources indexes the given resource definitions by URI.
func NewStaticResources(defs []oidc.ResourceDefinition) *StaticResources {
	byURI := make(map[string]oidc.ResourceDefinition, len(defs))
	for _, def := range defs {
		byURI[def.URI] = def
	}
	return &StaticResources{byURI: byURI}
}

// TryGet returns the definition for uri, or false when unregistered.
func (s *StaticResources) TryGet(uri string) (oidc.ResourceDefinition, bool) {
	def, ok := s.byURI[uri]
	return def, ok
}
