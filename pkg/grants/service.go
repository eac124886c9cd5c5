// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package grants

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// Code redemption failures. All of them map to the token endpoint's
// invalid_grant response; the distinction is for logs.
var (
	ErrUnknownCode         = errors.New("authorization code is unknown or already redeemed")
	ErrClientMismatch      = errors.New("authorization code was issued to a different client")
	ErrRedirectURIMismatch = errors.New("redirect_uri does not match the authorization request")
	ErrVerifierMismatch    = errors.New("code_verifier does not match the code challenge")
	ErrVerifierRequired    = errors.New("code_verifier is required for this grant")
)

// RedemptionRequest carries the token-endpoint parameters that must agree
// with the stored grant.
type RedemptionRequest struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// Service redeems authorization codes against the grant store, enforcing the
// PKCE and redirect URI bindings recorded at authorization time.
type Service struct {
	store  GrantStore
	logger *slog.Logger
}

// NewService wires a grant redemption service.
func NewService(store GrantStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// IssueCode persists the grant and returns its authorization code.
func (s *Service) IssueCode(ctx context.Context, grant *oidc.AuthorizedGrant, ttl time.Duration) (string, error) {
	return s.store.Store(ctx, grant, ttl)
}

// Redeem consumes the code and checks the grant's bindings. The code is
// destroyed even when a binding check fails; a stolen code must not survive
// a failed redemption attempt.
func (s *Service) Redeem(ctx context.Context, req RedemptionRequest) (*oidc.AuthorizedGrant, error) {
	grant, err := s.store.Consume(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, ErrUnknownCode
	}

	gc := grant.Context
	if gc.ClientID != req.ClientID {
		s.logger.Warn("authorization code redeemed by wrong client",
			"issued_to", gc.ClientID, "presented_by", req.ClientID)
		return nil, ErrClientMismatch
	}
	if gc.RedirectURI != "" && gc.RedirectURI != req.RedirectURI {
		return nil, ErrRedirectURIMismatch
	}
	if err := verifyPKCE(gc, req.CodeVerifier); err != nil {
		return nil, err
	}
	return grant, nil
}

// verifyPKCE checks the code_verifier against the challenge bound into the
// grant (RFC 7636 Section 4.6).
func verifyPKCE(gc *oidc.AuthorizationContext, verifier string) error {
	if gc.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return ErrVerifierRequired
	}

	var derived string
	switch gc.CodeChallengeMethod {
	case oidc.CodeChallengeMethodS256:
		derived = oauth2.S256ChallengeFromVerifier(verifier)
	default:
		// Absent method means plain.
		derived = verifier
	}

	if subtle.ConstantTimeCompare([]byte(derived), []byte(gc.CodeChallenge)) != 1 {
		return ErrVerifierMismatch
	}
	return nil
}
