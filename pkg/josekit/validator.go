// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package josekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/authkeel/authkeel/pkg/oidc"
)

// Validation failure modes.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidIssuer    = errors.New("invalid token issuer")
	ErrInvalidAudience  = errors.New("invalid token audience")
	ErrNoSigningKeys    = errors.New("no signing keys for token issuer")
)

// ValidationOptions selects which checks a validator performs.
type ValidationOptions uint8

// Individual validation checks.
const (
	ValidateSignature ValidationOptions = 1 << iota
	ValidateIssuer
	ValidateAudience
	ValidateLifetime
)

// ValidateAll is the default: signature, issuer, audience, signing-key and
// lifetime validation.
const ValidateAll = ValidateSignature | ValidateIssuer | ValidateAudience | ValidateLifetime

// allowedAlgorithms are the JWS algorithms this server accepts on inbound
// tokens.
var allowedAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// clockSkewLeeway absorbs clock drift between token parties.
const clockSkewLeeway = time.Minute

// ValidationParameters bind the caller-specific checks into the generic
// validator. Callbacks are only invoked for checks enabled in Options.
type ValidationParameters struct {
	// Options selects the enforced checks. Zero means ValidateAll.
	Options ValidationOptions

	// ValidateIssuer accepts or rejects the iss claim.
	ValidateIssuer func(ctx context.Context, issuer string) (bool, error)

	// ValidateAudience accepts or rejects the aud claim.
	ValidateAudience func(ctx context.Context, audiences []string) (bool, error)

	// ResolveIssuerKeys returns the verification keys for the issuer. An
	// empty set fails signature validation.
	ResolveIssuerKeys func(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error)

	// Clock drives lifetime checks. Nil uses the system clock.
	Clock oidc.Clock
}

// TokenValidator validates compact JWS tokens against ValidationParameters.
type TokenValidator struct {
	params ValidationParameters
}

// NewTokenValidator builds a validator. Missing callbacks fail their
// corresponding check rather than silently pass.
func NewTokenValidator(params ValidationParameters) *TokenValidator {
	if params.Options == 0 {
		params.Options = ValidateAll
	}
	if params.Clock == nil {
		params.Clock = oidc.SystemClock{}
	}
	return &TokenValidator{params: params}
}

// Validate parses and checks the token, returning its header and claims.
func (v *TokenValidator) Validate(ctx context.Context, raw string) (*JWT, error) {
	jws, err := jose.ParseSigned(raw, allowedAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one signature", ErrInvalidToken)
	}
	sig := jws.Signatures[0]

	// The issuer is read before signature verification because it selects
	// the verification keys. Claims are not trusted until Verify succeeds.
	var unverified Claims
	if err := json.Unmarshal(jws.UnsafePayloadWithoutVerification(), &unverified); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}
	issuer := unverified.String(ClaimIssuer)

	if v.params.Options&ValidateIssuer != 0 {
		if v.params.ValidateIssuer == nil {
			return nil, fmt.Errorf("%w: no issuer validation configured", ErrInvalidIssuer)
		}
		ok, err := v.params.ValidateIssuer(ctx, issuer)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIssuer, issuer)
		}
	}

	payload := jws.UnsafePayloadWithoutVerification()
	if v.params.Options&ValidateSignature != 0 {
		payload, err = v.verifySignature(ctx, jws, issuer, sig.Header.KeyID)
		if err != nil {
			return nil, err
		}
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}

	if v.params.Options&ValidateLifetime != 0 {
		if err := v.checkLifetime(claims); err != nil {
			return nil, err
		}
	}

	if v.params.Options&ValidateAudience != 0 {
		if v.params.ValidateAudience == nil {
			return nil, fmt.Errorf("%w: no audience validation configured", ErrInvalidAudience)
		}
		ok, err := v.params.ValidateAudience(ctx, claims.Audience())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAudience, claims.Audience())
		}
	}

	typ, _ := sig.Header.ExtraHeaders[jose.HeaderType].(string)
	return &JWT{
		Header: Header{Type: typ, Algorithm: sig.Header.Algorithm},
		Claims: claims,
	}, nil
}

func (v *TokenValidator) verifySignature(ctx context.Context, jws *jose.JSONWebSignature, issuer, keyID string) ([]byte, error) {
	if v.params.ResolveIssuerKeys == nil {
		return nil, fmt.Errorf("%w: no key resolution configured", ErrNoSigningKeys)
	}
	keySet, err := v.params.ResolveIssuerKeys(ctx, issuer)
	if err != nil {
		return nil, err
	}
	if keySet == nil || len(keySet.Keys) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoSigningKeys, issuer)
	}

	candidates := keySet.Keys
	if keyID != "" {
		if matched := keySet.Key(keyID); len(matched) > 0 {
			candidates = matched
		}
	}

	for i := range candidates {
		if payload, err := jws.Verify(&candidates[i]); err == nil {
			return payload, nil
		}
	}
	return nil, ErrInvalidSignature
}

func (v *TokenValidator) checkLifetime(claims Claims) error {
	now := v.params.Clock.Now()

	exp, ok := claims.Time(ClaimExpiresAt)
	if !ok {
		return fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}
	if now.After(exp.Add(clockSkewLeeway)) {
		return ErrTokenExpired
	}

	if nbf, ok := claims.Time(ClaimNotBefore); ok && now.Add(clockSkewLeeway).Before(nbf) {
		return ErrTokenNotYetValid
	}
	return nil
}
