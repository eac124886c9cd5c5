// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package server binds the authorization pipelines to HTTP. It is a thin
// layer: parameter parsing on the way in, response-mode delivery on the way
// out. End-user authentication is the embedding application's concern; the
// handlers read the current session through oidc.AuthSessionService using
// the request context.
package server

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authkeel/authkeel/pkg/authorize"
	"github.com/authkeel/authkeel/pkg/endsession"
	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/par"
	"github.com/authkeel/authkeel/pkg/telemetry"
)

// errorCodeLoginRequired rejects authorization requests arriving without an
// authenticated session (OIDC Core Section 3.1.2.6).
const errorCodeLoginRequired = "login_required"

// logoutPageTemplate renders the front-channel logout iframes and forwards
// the user agent to the post-logout redirect once they have loaded.
var logoutPageTemplate = template.Must(template.New("logout").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Signed out</title>
{{- if .RedirectURI}}
<meta http-equiv="refresh" content="2;url={{.RedirectURI}}"/>
{{- end}}
</head>
<body>
<p>You have been signed out.</p>
{{- range .FrameURIs}}
<iframe src="{{.}}" style="display:none"></iframe>
{{- end}}
{{- if .RedirectURI}}
<a href="{{.RedirectURI}}">Continue</a>
{{- end}}
</body>
</html>
`))

// Handler serves the authorization server endpoints.
type Handler struct {
	authorize  *authorize.Handler
	endSession *endsession.Processor
	pushed     par.RequestStore
	pushedTTL  time.Duration
	sessions   oidc.AuthSessionService
	clients    oidc.ClientInfoProvider
	keys       keys.KeyResolver
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPushedRequestTTL overrides how long pushed requests stay consumable.
func WithPushedRequestTTL(ttl time.Duration) HandlerOption {
	return func(h *Handler) {
		h.pushedTTL = ttl
	}
}

// WithMetrics attaches an instrument set. Without one the handlers serve
// requests unobserved and /metrics is not registered.
func WithMetrics(metrics *telemetry.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// NewHandler wires the endpoint handlers.
func NewHandler(
	authorizeHandler *authorize.Handler,
	endSessionProcessor *endsession.Processor,
	pushed par.RequestStore,
	sessions oidc.AuthSessionService,
	clients oidc.ClientInfoProvider,
	resolver keys.KeyResolver,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		authorize:  authorizeHandler,
		endSession: endSessionProcessor,
		pushed:     pushed,
		pushedTTL:  par.DefaultTTL,
		sessions:   sessions,
		clients:    clients,
		keys:       resolver,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns a router with every endpoint registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/oauth/authorize", h.AuthorizeHandler)
	r.Post("/oauth/authorize", h.AuthorizeHandler)
	r.Post("/oauth/par", h.PushedAuthorizationHandler)
	r.Get("/oauth/end-session", h.EndSessionHandler)
	r.Post("/oauth/end-session", h.EndSessionHandler)
	r.Get("/.well-known/jwks.json", h.JWKSHandler)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	return r
}

// AuthorizeHandler serves the authorization endpoint.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	request, err := ParseAuthorizationRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, oidc.ErrorCodeInvalidRequest, "malformed request")
		return
	}

	session, err := h.sessions.CurrentSession(ctx)
	if err != nil {
		h.internalError(w, "resolving session", err)
		return
	}
	if session == nil {
		h.countAuthorization(errorCodeLoginRequired)
		writeJSONError(w, http.StatusUnauthorized, errorCodeLoginRequired, "end-user authentication is required")
		return
	}

	response, reqErr, err := h.authorize.Authorize(ctx, request, session)
	if err != nil {
		h.internalError(w, "processing authorization request", err)
		return
	}
	if reqErr != nil {
		h.countAuthorization(reqErr.Code)
		if err := deliverRequestError(w, r, reqErr, request.State); err != nil {
			h.logger.Error("delivering authorization error", "error", err)
		}
		return
	}

	h.countAuthorization(telemetry.OutcomeSuccess)
	h.countIssued(response)
	if err := deliverParameters(w, r, response.RedirectURI, response.ResponseMode, response.Parameters()); err != nil {
		h.internalError(w, "delivering authorization response", err)
	}
}

// PushedAuthorizationHandler serves the pushed authorization request
// endpoint (RFC 9126).
func (h *Handler) PushedAuthorizationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	request, err := ParseAuthorizationRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, oidc.ErrorCodeInvalidRequest, "malformed request")
		return
	}

	// A pushed request must not itself reference one.
	if request.RequestURI != "" {
		writeJSONError(w, http.StatusBadRequest, oidc.ErrorCodeInvalidRequest, "request_uri is not allowed here")
		return
	}

	client, err := h.clients.TryGetClient(ctx, request.ClientID)
	if err != nil {
		h.internalError(w, "resolving client", err)
		return
	}
	if client == nil {
		writeJSONError(w, http.StatusUnauthorized, oidc.ErrorCodeUnauthorizedClient, "unknown client")
		return
	}

	stored, err := h.pushed.Store(ctx, request, h.pushedTTL)
	if err != nil {
		h.internalError(w, "storing pushed request", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_uri": stored.RequestURI,
		"expires_in":  int64(stored.ExpiresIn / time.Second),
	})
}

// EndSessionHandler serves the RP-initiated logout endpoint.
func (h *Handler) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	request, err := ParseEndSessionRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, oidc.ErrorCodeInvalidRequest, "malformed request")
		return
	}

	response, reqErr, err := h.endSession.EndSession(r.Context(), request)
	if err != nil {
		h.internalError(w, "processing end-session request", err)
		return
	}
	if reqErr != nil {
		h.countEndSession(reqErr.Code)
		writeJSONError(w, http.StatusBadRequest, reqErr.Code, reqErr.Description)
		return
	}
	h.countEndSession(telemetry.OutcomeSuccess)

	// Without front-channel participants the user agent goes straight to
	// the post-logout target.
	if len(response.FrontChannelLogoutURIs) == 0 && response.PostLogoutRedirectURI != "" {
		http.Redirect(w, r, response.PostLogoutRedirectURI, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	err = logoutPageTemplate.Execute(w, struct {
		RedirectURI string
		FrameURIs   []string
	}{RedirectURI: response.PostLogoutRedirectURI, FrameURIs: response.FrontChannelLogoutURIs})
	if err != nil {
		h.logger.Error("rendering logout page", "error", err)
	}
}

// JWKSHandler publishes the server's public signing keys.
func (h *Handler) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	jwks, err := keys.PublicJWKS(r.Context(), h.keys)
	if err != nil {
		h.internalError(w, "assembling JWKS", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := json.NewEncoder(w).Encode(jwks); err != nil {
		h.logger.Error("writing JWKS", "error", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, during string, err error) {
	h.logger.Error(during, "error", err)
	writeJSONError(w, http.StatusInternalServerError, "server_error", "the request could not be processed")
}

func (h *Handler) countAuthorization(outcome string) {
	if h.metrics != nil {
		h.metrics.AuthorizationRequests.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countEndSession(outcome string) {
	if h.metrics != nil {
		h.metrics.EndSessionRequests.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) countIssued(response *authorize.AuthorizationResponse) {
	if h.metrics == nil {
		return
	}
	if response.AccessToken != "" {
		h.metrics.TokensIssued.WithLabelValues("access").Inc()
	}
	if response.IDToken != "" {
		h.metrics.TokensIssued.WithLabelValues("identity").Inc()
	}
}
