// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import "strconv"

// TokenTypeBearer is the token_type for every access token this server
// issues.
const TokenTypeBearer = "Bearer"

// AuthorizationResponse is a successful authorization result, ready for
// delivery through the negotiated response mode.
type AuthorizationResponse struct {
	// RedirectURI is the validated delivery target.
	RedirectURI string

	// ResponseMode selects query, fragment or form_post encoding.
	ResponseMode string

	// State echoes the request's state value.
	State string

	// Code is the authorization code, set for code and hybrid flows.
	Code string

	// AccessToken, TokenType and ExpiresIn are set when response_type
	// includes token.
	AccessToken string
	TokenType   string
	ExpiresIn   int64

	// IDToken is set when response_type includes id_token.
	IDToken string
}

// Parameters flattens the response into the wire parameters, omitting empty
// values.
func (r *AuthorizationResponse) Parameters() map[string]string {
	params := make(map[string]string)
	if r.Code != "" {
		params["code"] = r.Code
	}
	if r.AccessToken != "" {
		params["access_token"] = r.AccessToken
		params["token_type"] = r.TokenType
		params["expires_in"] = strconv.FormatInt(r.ExpiresIn, 10)
	}
	if r.IDToken != "" {
		params["id_token"] = r.IDToken
	}
	if r.State != "" {
		params["state"] = r.State
	}
	return params
}
