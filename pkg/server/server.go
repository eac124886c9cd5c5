// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/authkeel/authkeel/pkg/authorize"
	"github.com/authkeel/authkeel/pkg/config"
	"github.com/authkeel/authkeel/pkg/endsession"
	"github.com/authkeel/authkeel/pkg/grants"
	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/keys"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/par"
	"github.com/authkeel/authkeel/pkg/registry"
	"github.com/authkeel/authkeel/pkg/storage"
	"github.com/authkeel/authkeel/pkg/telemetry"
	"github.com/authkeel/authkeel/pkg/tokens"
)

// Dependencies are the pieces the embedding application must provide: how
// the end-user signs in and what claims they carry are out of this module's
// hands.
type Dependencies struct {
	// Sessions exposes the authenticated end-user session through the
	// request context.
	Sessions oidc.AuthSessionService

	// Claims releases end-user claims for identity tokens.
	Claims tokens.UserClaimsProvider

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *telemetry.Metrics
}

// Server is a fully assembled authorization server.
type Server struct {
	cfg     *config.Config
	handler http.Handler
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// GrantService redeems authorization codes. Exposed for the embedding
	// application's token endpoint.
	GrantService *grants.Service

	// RefreshTokens rotates and validates refresh tokens, likewise for the
	// token endpoint.
	RefreshTokens *tokens.RefreshTokenService

	// AccessTokens issues and reconstructs access tokens.
	AccessTokens *tokens.AccessTokenService

	// IdentityTokens issues identity tokens.
	IdentityTokens *tokens.IdentityTokenService

	closers []io.Closer
}

// New assembles the server from its configuration. The configuration must
// already be validated.
func New(ctx context.Context, cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("a session service is required")
	}
	if deps.Claims == nil {
		return nil, errors.New("a user claims provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{cfg: cfg, logger: logger, metrics: deps.Metrics}

	store, err := srv.newStore(ctx)
	if err != nil {
		return nil, err
	}

	resolver, err := newKeyResolver(cfg.Signing)
	if err != nil {
		return nil, fmt.Errorf("loading signing keys: %w", err)
	}

	clientKeys, err := keys.NewClientKeyResolver(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("building client key resolver: %w", err)
	}

	var (
		clock      = oidc.SystemClock{}
		idGen      = oidc.UUIDGenerator{}
		issuer     = oidc.StaticIssuer(cfg.Issuer)
		serializer = storage.JSONSerializer{}
		keyFactory = storage.NewKeyFactory(cfg.Storage.Redis.KeyPrefix)
		clients    = config.NewStaticClients(cfg.ClientInfos())
		scopes     = config.NewStaticScopes(cfg.ScopeDefinitions())
		resources  = config.NewStaticResources(cfg.ResourceDefinitions())
	)

	formatter := josekit.NewServiceFormatter(resolver, clientKeys, logger)
	tokenRegistry := registry.NewStorageTokenRegistry(store, keyFactory, serializer)

	srv.AccessTokens = tokens.NewAccessTokenService(formatter, issuer, clock, idGen,
		tokens.WithAccessTokenAlgorithm(cfg.Signing.Algorithm))
	srv.IdentityTokens = tokens.NewIdentityTokenService(formatter, issuer, clock, idGen, deps.Claims, logger)
	srv.RefreshTokens = tokens.NewRefreshTokenService(formatter, issuer, clock, idGen, tokenRegistry, logger)
	logoutTokens := tokens.NewLogoutTokenService(formatter, issuer, clock, idGen)

	grantStore := grants.NewStorageGrantStore(store, keyFactory, serializer, idGen)
	srv.GrantService = grants.NewService(grantStore, logger)

	pushed := par.NewStorageRequestStore(store, keyFactory, serializer, idGen)
	jar := josekit.NewClientJwtValidator(cfg.Issuer+"/oauth/authorize", clients, clientKeys, clock)

	authorizeHandler := authorize.NewHandler(
		authorize.NewFetcher(pushed, jar, logger),
		authorize.DefaultChain(clients, scopes, resources, logger),
		authorize.NewProcessor(srv.AccessTokens, srv.IdentityTokens, srv.GrantService, clock, logger,
			authorize.WithCodeTTL(cfg.Lifetimes.AuthorizationCode)),
		logger,
	)

	endSessionProcessor := endsession.NewProcessor(
		endsession.NewServerHintValidator(issuer, resolver),
		deps.Sessions,
		clients,
		issuer,
		newInstrumentedNotifier(endsession.NewHTTPNotifier(logoutTokens, logger), deps.Metrics),
		logger,
	)

	handler := NewHandler(authorizeHandler, endSessionProcessor, pushed, deps.Sessions, clients, resolver, logger,
		WithPushedRequestTTL(cfg.Lifetimes.PushedRequest),
		WithMetrics(deps.Metrics),
	)
	srv.handler = handler.Routes()

	return srv, nil
}

// Handler returns the assembled HTTP handler, for embedding into a larger
// router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// RedeemGrant redeems an authorization code and records the outcome. Token
// endpoints built on this server should prefer it over calling GrantService
// directly so redemptions show up in the metrics.
func (s *Server) RedeemGrant(ctx context.Context, req grants.RedemptionRequest) (*oidc.AuthorizedGrant, error) {
	grant, err := s.GrantService.Redeem(ctx, req)
	if s.metrics != nil {
		outcome := telemetry.OutcomeSuccess
		if err != nil {
			outcome = telemetry.OutcomeFailure
		}
		s.metrics.GrantRedemptions.WithLabelValues(outcome).Inc()
	}
	return grant, err
}

// Run serves HTTP on the configured listen address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("authorization server listening", "address", s.cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return s.Close()
}

// Close releases the storage backend.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) newStore(ctx context.Context) (storage.Store, error) {
	switch s.cfg.Storage.Backend {
	case "redis":
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     s.cfg.Storage.Redis.Address,
			Password: s.cfg.Storage.Redis.Password,
			DB:       s.cfg.Storage.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.closers = append(s.closers, store)
		return store, nil
	default:
		store := storage.NewMemoryStore()
		s.closers = append(s.closers, store)
		return store, nil
	}
}

func newKeyResolver(cfg config.SigningConfig) (keys.KeyResolver, error) {
	if cfg.KeyFile == "" {
		return keys.NewEphemeralResolver()
	}
	return keys.NewFileResolver(keys.FileConfig{KeyFiles: []string{cfg.KeyFile}})
}
