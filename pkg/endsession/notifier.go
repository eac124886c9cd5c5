// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package endsession

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/tokens"
)

// LogoutNotifier tells one client that a session it took part in has ended.
// The returned URI, when non-empty, is the client's front-channel logout
// iframe URL; back-channel delivery happens inside the call.
type LogoutNotifier interface {
	NotifyClient(ctx context.Context, client *oidc.ClientInfo, logout *oidc.LogoutContext) (string, error)
}

// HTTPNotifier performs OIDC front- and back-channel logout notification.
// Back-channel POSTs retry with exponential backoff; the caller bounds the
// total time through the context.
type HTTPNotifier struct {
	logoutTokens *tokens.LogoutTokenService
	httpClient   *http.Client
	maxTries     uint
	logger       *slog.Logger
}

// NotifierOption configures the notifier.
type NotifierOption func(*HTTPNotifier)

// WithHTTPClient overrides the HTTP client used for back-channel POSTs.
func WithHTTPClient(client *http.Client) NotifierOption {
	return func(n *HTTPNotifier) {
		n.httpClient = client
	}
}

// WithMaxTries bounds the delivery attempts per client.
func WithMaxTries(tries uint) NotifierOption {
	return func(n *HTTPNotifier) {
		n.maxTries = tries
	}
}

// NewHTTPNotifier wires a notifier.
func NewHTTPNotifier(logoutTokens *tokens.LogoutTokenService, logger *slog.Logger, opts ...NotifierOption) *HTTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &HTTPNotifier{
		logoutTokens: logoutTokens,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		maxTries:     3,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyClient handles both channels. A client may be registered for either
// or both; a client registered for neither is a silent no-op.
func (n *HTTPNotifier) NotifyClient(ctx context.Context, client *oidc.ClientInfo, logout *oidc.LogoutContext) (string, error) {
	var frontChannelURI string
	if fc := client.FrontChannelLogout; fc != nil && fc.URI != "" {
		frontChannelURI = frontChannelLogoutURI(fc, logout)
	}

	if bc := client.BackChannelLogout; bc != nil && bc.URI != "" {
		if err := n.postLogoutToken(ctx, client, logout); err != nil {
			return frontChannelURI, err
		}
	}
	return frontChannelURI, nil
}

// frontChannelLogoutURI renders the iframe URL, appending iss and sid when
// the client asked for them (OIDC Front-Channel Logout Section 2).
func frontChannelLogoutURI(fc *oidc.FrontChannelLogoutOptions, logout *oidc.LogoutContext) string {
	if !fc.RequiresSessionID {
		return fc.URI
	}
	parsed, err := url.Parse(fc.URI)
	if err != nil {
		return fc.URI
	}
	query := parsed.Query()
	query.Set("iss", logout.Issuer)
	query.Set("sid", logout.SessionID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// postLogoutToken delivers a logout token to the client's back-channel
// endpoint (OIDC Back-Channel Logout Section 2.5).
func (n *HTTPNotifier) postLogoutToken(ctx context.Context, client *oidc.ClientInfo, logout *oidc.LogoutContext) error {
	token, err := n.logoutTokens.CreateLogoutToken(ctx, logout, client)
	if err != nil {
		return fmt.Errorf("failed to create logout token for %s: %w", client.ClientID, err)
	}

	form := url.Values{"logout_token": {token.Value}}.Encode()
	endpoint := client.BackChannelLogout.URI

	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return struct{}{}, fmt.Errorf("logout endpoint returned %s", resp.Status)
		}
		return struct{}{}, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 100 * time.Millisecond

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(n.maxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			n.logger.Debug("retrying back-channel logout",
				"client_id", client.ClientID, "delay", duration, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("back-channel logout to %s failed: %w", client.ClientID, err)
	}
	return nil
}
