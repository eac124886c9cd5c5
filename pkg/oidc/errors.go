// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import "fmt"

// OAuth 2.0 / OIDC error codes emitted by the pipelines.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeInvalidTarget           = "invalid_target"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeInvalidRequestURI       = "invalid_request_uri"
	ErrorCodeInvalidRequestObject    = "invalid_request_object"
	ErrorCodeConsentRequired         = "consent_required"
)

// RequestError is the tagged, client-visible validation error. It travels
// down the pipeline as a value, carrying everything needed to deliver it:
// the redirect URI and the response mode negotiated so far. A nil
// *RequestError means the stage succeeded.
type RequestError struct {
	// Code is one of the ErrorCode constants.
	Code string

	// Description is the human-readable error_description.
	Description string

	// RedirectURI is where the error may be delivered, when known. Empty
	// means the error must be returned as a plain HTTP error instead.
	RedirectURI string

	// ResponseMode selects how the error parameters are encoded.
	ResponseMode string
}

// NewRequestError builds a RequestError without delivery details; the caller
// attaches them before handing the error back.
func NewRequestError(code, description string) *RequestError {
	return &RequestError{Code: code, Description: description}
}

// Error implements the error interface for logging; pipeline code passes
// *RequestError around directly rather than through error.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithRedirect returns a copy carrying the delivery target.
func (e *RequestError) WithRedirect(redirectURI, responseMode string) *RequestError {
	clone := *e
	clone.RedirectURI = redirectURI
	clone.ResponseMode = responseMode
	return &clone
}
