package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authpay/internal/apperr"
)

func TestExchangeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-123", r.URL.Query().Get("id_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"a@x.com","email_verified":"true"}`))
	}))
	defer ts.Close()

	email, verified, err := NewVerifier(ts.URL).Exchange(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", email)
	assert.True(t, verified)
}

func TestExchangeRejectedByProvider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	_, _, err := NewVerifier(ts.URL).Exchange(context.Background(), "bad")
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FederationRejected, kind)
}

func TestExchangeMissingEmailClaim(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"aud":"client-id"}`))
	}))
	defer ts.Close()

	_, _, err := NewVerifier(ts.URL).Exchange(context.Background(), "tok")
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FederationRejected, kind)
}

func TestExchangeProviderUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // Nothing listening anymore

	_, _, err := NewVerifier(ts.URL).Exchange(context.Background(), "tok")
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FederationUnavailable, kind)
}
