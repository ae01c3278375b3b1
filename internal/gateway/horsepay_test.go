package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rifa-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		ClientKey:    "key",
		ClientSecret: "secret",
	})
}

func TestAuthenticate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "tok-123"}`))
	})

	token, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestAuthenticateAlternateKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "tok-456"}`))
	})

	token, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-456", token)
}

func TestAuthenticateMissingToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	})

	_, err := client.Authenticate(context.Background())
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestDoMapsUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad credentials"}`))
	})

	_, err := client.Do(context.Background(), http.MethodGet, "/user/balance", "tok", nil)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestNewOrderNormalizesResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/neworder", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"transaction": {"id": 555, "status": "pending"},
			"data": {"copy_paste": "` + emvSample + `"}
		}`))
	})

	result, err := client.NewOrder(context.Background(), "tok", NewOrderRequest{
		PayerName:   "Maria",
		AmountCents: 990,
		ClientRef:   "ref-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "555", result.ExternalID)
	assert.Equal(t, emvSample, result.CopyPaste)
	assert.False(t, result.Failed)
}

func TestNewOrderFailedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"external_id": "tx-1", "status": "failed"}`))
	})

	result, err := client.NewOrder(context.Background(), "tok", NewOrderRequest{})
	require.NoError(t, err)

	assert.True(t, result.Failed)
	assert.Equal(t, "tx-1", result.ExternalID)
}
