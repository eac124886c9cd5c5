// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

package authorize

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkeel/authkeel/pkg/josekit"
	"github.com/authkeel/authkeel/pkg/oidc"
	"github.com/authkeel/authkeel/pkg/par"
	"github.com/authkeel/authkeel/pkg/storage"
)

type fakeRequestObjectValidator struct {
	token *josekit.JWT
	err   error
}

func (f *fakeRequestObjectValidator) Validate(context.Context, string) (*josekit.JWT, error) {
	return f.token, f.err
}

func newParStore(t *testing.T) par.RequestStore {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return par.NewStorageRequestStore(store, storage.NewKeyFactory(""), storage.JSONSerializer{}, oidc.UUIDGenerator{})
}

func TestFetchPassesPlainRequestsThrough(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(newParStore(t), nil, slog.Default())
	request := &oidc.AuthorizationRequest{ClientID: "client-1", ResponseType: []string{"code"}}

	fetched, reqErr := fetcher.Fetch(context.Background(), request)
	require.Nil(t, reqErr)
	assert.Same(t, request, fetched)
}

func TestFetchDereferencesPushedRequest(t *testing.T) {
	t.Parallel()

	parStore := newParStore(t)
	fetcher := NewFetcher(parStore, nil, slog.Default())
	ctx := context.Background()

	pushed, err := parStore.Store(ctx, &oidc.AuthorizationRequest{
		ClientID:     "client-1",
		ResponseType: []string{"code"},
		RedirectURI:  "https://client.example.com/cb",
		Scope:        []string{"openid"},
	}, time.Minute)
	require.NoError(t, err)

	fetched, reqErr := fetcher.Fetch(ctx, &oidc.AuthorizationRequest{
		ClientID:   "client-1",
		RequestURI: pushed.RequestURI,
	})
	require.Nil(t, reqErr)
	assert.Equal(t, []string{"openid"}, fetched.Scope)
	assert.Equal(t, "https://client.example.com/cb", fetched.RedirectURI)

	// The pushed request is single-use.
	_, reqErr = fetcher.Fetch(ctx, &oidc.AuthorizationRequest{RequestURI: pushed.RequestURI})
	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequestURI, reqErr.Code)
}

func TestFetchRejectsForeignRequestURI(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(newParStore(t), nil, slog.Default())
	_, reqErr := fetcher.Fetch(context.Background(), &oidc.AuthorizationRequest{
		RequestURI: "https://client.example.com/request.jwt",
	})
	require.NotNil(t, reqErr)
	assert.Equal(t, oidc.ErrorCodeInvalidRequestURI, reqErr.Code)
}

func TestFetchUnwrapsRequestObject(t *testing.T) {
	t.Parallel()

	object := josekit.NewJWT("", "RS256")
	object.Claims["client_id"] = "client-1"
	object.Claims["response_type"] = "code id_token"
	object.Claims["redirect_uri"] = "https://client.example.com/cb"
	object.Claims["scope"] = "openid profile"
	object.Claims["nonce"] = "n1"
	object.Claims["max_age"] = float64(600)
	object.Claims["resource"] = []any{"https://api.example.com"}
	object.Claims["claims"] = map[string]any{
		"id_token": map[string]any{"email": map[string]any{"essential": true}},
	}

	fetcher := NewFetcher(newParStore(t), &fakeRequestObjectValidator{token: object}, slog.Default())

	fetched, reqErr := fetcher.Fetch(context.Background(), &oidc.AuthorizationRequest{
		ClientID: "client-1",
		Request:  "eyJ.signed.object",
		State:    "outer-state",
	})
	require.Nil(t, reqErr)

	assert.Equal(t, "client-1", fetched.ClientID)
	assert.Equal(t, []string{"code", "id_token"}, fetched.ResponseType)
	assert.Equal(t, []string{"openid", "profile"}, fetched.Scope)
	assert.Equal(t, "n1", fetched.Nonce)
	assert.Equal(t, "outer-state", fetched.State, "outer parameters survive where the object is silent")
	assert.Empty(t, fetched.Request)
	require.NotNil(t, fetched.MaxAge)
	assert.Equal(t, 10*time.Minute, *fetched.MaxAge)
	assert.Equal(t, []string{"https://api.example.com"}, fetched.Resources)
	require.NotNil(t, fetched.Claims)
	require.Contains(t, fetched.Claims.IDToken, "email")
	assert.True(t, fetched.Claims.IDToken["email"].Essential)
}

func TestFetchRejectsBadRequestObject(t *testing.T) {
	t.Parallel()

	t.Run("validation failure", func(t *testing.T) {
		t.Parallel()

		fetcher := NewFetcher(newParStore(t), &fakeRequestObjectValidator{err: errors.New("bad signature")}, slog.Default())
		_, reqErr := fetcher.Fetch(context.Background(), &oidc.AuthorizationRequest{Request: "x"})
		require.NotNil(t, reqErr)
		assert.Equal(t, oidc.ErrorCodeInvalidRequestObject, reqErr.Code)
	})

	t.Run("client_id mismatch", func(t *testing.T) {
		t.Parallel()

		object := josekit.NewJWT("", "RS256")
		object.Claims["client_id"] = "client-2"

		fetcher := NewFetcher(newParStore(t), &fakeRequestObjectValidator{token: object}, slog.Default())
		_, reqErr := fetcher.Fetch(context.Background(), &oidc.AuthorizationRequest{
			ClientID: "client-1",
			Request:  "x",
		})
		require.NotNil(t, reqErr)
		assert.Equal(t, oidc.ErrorCodeInvalidRequestObject, reqErr.Code)
	})

	t.Run("no validator configured", func(t *testing.T) {
		t.Parallel()

		fetcher := NewFetcher(newParStore(t), nil, slog.Default())
		_, reqErr := fetcher.Fetch(context.Background(), &oidc.AuthorizationRequest{Request: "x"})
		require.NotNil(t, reqErr)
		assert.Equal(t, oidc.ErrorCodeInvalidRequestObject, reqErr.Code)
	})
}
