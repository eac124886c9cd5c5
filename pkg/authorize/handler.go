// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"log/slog"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// Handler binds the pipeline stages together: fetch, validate, process.
type Handler struct {
	fetcher   *Fetcher
	chain     *Chain
	processor *Processor
	logger    *slog.Logger
}

// NewHandler wires the authorization pipeline.
func NewHandler(fetcher *Fetcher, chain *Chain, processor *Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{fetcher: fetcher, chain: chain, processor: processor, logger: logger}
}

// Authorize runs one request through the pipeline. The *RequestError return
// is a client-visible refusal carrying its own delivery details; the error
// return is an internal failure.
func (h *Handler) Authorize(ctx context.Context, request *oidc.AuthorizationRequest, session *oidc.AuthSession) (*AuthorizationResponse, *oidc.RequestError, error) {
	fetched, reqErr := h.fetcher.Fetch(ctx, request)
	if reqErr != nil {
		h.logger.Info("authorization request rejected at fetch",
			"client_id", request.ClientID, "error", reqErr.Code)
		return nil, reqErr, nil
	}

	vc := oidc.NewValidationContext(fetched)
	if reqErr := h.chain.Validate(ctx, vc); reqErr != nil {
		h.logger.Info("authorization request rejected",
			"client_id", fetched.ClientID, "error", reqErr.Code, "description", reqErr.Description)
		return nil, reqErr, nil
	}

	return h.processor.Process(ctx, &oidc.ValidAuthorizationRequest{Context: vc}, session)
}
