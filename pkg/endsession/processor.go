// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package endsession

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// DefaultNotifyTimeout bounds the whole notification fan-out for one
// end-session request.
const DefaultNotifyTimeout = 15 * time.Second

// notifyConcurrency caps parallel client notifications per request.
const notifyConcurrency = 8

// Processor runs the end-session pipeline: validate the request, tear down
// the session, and notify every client that took part in it.
type Processor struct {
	validators    []Validator
	sessions      oidc.AuthSessionService
	clients       oidc.ClientInfoProvider
	issuer        oidc.IssuerProvider
	notifier      LogoutNotifier
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// ProcessorOption configures the processor.
type ProcessorOption func(*Processor)

// WithNotifyTimeout overrides the notification fan-out deadline.
func WithNotifyTimeout(timeout time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.notifyTimeout = timeout
	}
}

// NewProcessor wires the end-session pipeline with the canonical validator
// ordering: id_token_hint first so the redirect validator sees the inferred
// client.
func NewProcessor(hints HintValidator, sessions oidc.AuthSessionService, clients oidc.ClientInfoProvider, issuer oidc.IssuerProvider, notifier LogoutNotifier, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		validators: []Validator{
			NewIDTokenHintValidator(hints, logger),
			NewPostLogoutRedirectValidator(clients, logger),
		},
		sessions:      sessions,
		clients:       clients,
		issuer:        issuer,
		notifier:      notifier,
		notifyTimeout: DefaultNotifyTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EndSession runs one logout request. The *RequestError return is a
// client-visible refusal; the error return is an internal failure. Having no
// active session is a success: the user is signed out either way.
func (p *Processor) EndSession(ctx context.Context, request *oidc.EndSessionRequest) (*Response, *oidc.RequestError, error) {
	vc := NewValidationContext(request)
	for _, v := range p.validators {
		if reqErr := v.Validate(ctx, vc); reqErr != nil {
			return nil, reqErr, nil
		}
	}

	response := &Response{
		PostLogoutRedirectURI:  redirectWithState(vc.PostLogoutRedirectURI, request.State),
		FrontChannelLogoutURIs: []string{},
	}

	session, err := p.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return response, nil, nil
	}
	if session.Subject == "" {
		panic("endsession: active session has no subject")
	}

	if err := p.sessions.SignOut(ctx); err != nil {
		return nil, nil, err
	}

	issuer, err := p.issuer.Issuer(ctx)
	if err != nil {
		return nil, nil, err
	}
	logout := &oidc.LogoutContext{
		SessionID: session.SessionID,
		SubjectID: session.Subject,
		Issuer:    issuer,
	}

	response.FrontChannelLogoutURIs = p.notifyAll(ctx, session.AffectedClientIDs, logout)

	p.logger.Info("session terminated",
		"sid", session.SessionID,
		"clients_notified", len(session.AffectedClientIDs))
	return response, nil, nil
}

// notifyAll fans notifications out to every affected client and waits for
// all of them. Individual failures are logged, never surfaced: the user is
// signed out regardless of which relying parties heard about it.
func (p *Processor) notifyAll(ctx context.Context, clientIDs []string, logout *oidc.LogoutContext) []string {
	notifyCtx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
	defer cancel()

	var mu sync.Mutex
	frontChannelURIs := []string{}

	group, groupCtx := errgroup.WithContext(notifyCtx)
	group.SetLimit(notifyConcurrency)
	for _, clientID := range clientIDs {
		group.Go(func() error {
			client, err := p.clients.TryGetClient(groupCtx, clientID)
			if err != nil || client == nil {
				p.logger.Warn("skipping logout notification for unresolvable client",
					"client_id", clientID, "error", err)
				return nil
			}

			uri, err := p.notifier.NotifyClient(groupCtx, client, logout)
			if err != nil {
				p.logger.Warn("logout notification failed",
					"client_id", clientID, "error", err)
			}
			if uri != "" {
				mu.Lock()
				frontChannelURIs = append(frontChannelURIs, uri)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	return frontChannelURIs
}

// redirectWithState appends the request's state to the redirect URI as a
// query parameter.
func redirectWithState(redirectURI, state string) string {
	if redirectURI == "" || state == "" {
		return redirectURI
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	query := parsed.Query()
	query.Set("state", state)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
