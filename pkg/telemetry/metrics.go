// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes Prometheus metrics for the authorization
// server. Metrics register against a caller supplied registry so that
// embedding applications keep control of their metrics endpoint.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values shared across counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the server's instrument set.
type Metrics struct {
	registry *prometheus.Registry

	// TokensIssued counts issued tokens by type label (access, identity,
	// refresh, logout).
	TokensIssued *prometheus.CounterVec

	// AuthorizationRequests counts processed authorization requests by
	// outcome label (success, or the OAuth error code of the refusal).
	AuthorizationRequests *prometheus.CounterVec

	// GrantRedemptions counts authorization code redemptions by outcome.
	GrantRedemptions *prometheus.CounterVec

	// LogoutNotifications counts back-channel logout deliveries by outcome.
	LogoutNotifications *prometheus.CounterVec

	// EndSessionRequests counts end-session requests by outcome.
	EndSessionRequests *prometheus.CounterVec
}

// NewMetrics registers the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return NewMetricsWith(registry)
}

// NewMetricsWith registers the instrument set on the given registry.
func NewMetricsWith(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		TokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeel_tokens_issued_total",
				Help: "Total number of tokens issued, by token type",
			},
			[]string{"type"},
		),
		AuthorizationRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeel_authorization_requests_total",
				Help: "Total number of authorization requests processed, by outcome",
			},
			[]string{"outcome"},
		),
		GrantRedemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeel_grant_redemptions_total",
				Help: "Total number of authorization code redemptions, by outcome",
			},
			[]string{"outcome"},
		),
		LogoutNotifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeel_logout_notifications_total",
				Help: "Total number of back-channel logout deliveries, by outcome",
			},
			[]string{"outcome"},
		),
		EndSessionRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeel_end_session_requests_total",
				Help: "Total number of end-session requests processed, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
