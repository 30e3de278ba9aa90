package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://api.test", New("http://api.test/", nil).BaseURL())
}

func TestBaseURLFromEnv(t *testing.T) {
	t.Setenv(BaseURLEnv, "")
	assert.Equal(t, DefaultBaseURL, BaseURLFromEnv())
	t.Setenv(BaseURLEnv, "https://bank.example/")
	assert.Equal(t, "https://bank.example", New(BaseURLFromEnv(), nil).BaseURL())
}

func TestLoginKeepsTokenForLaterCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@x.com", body["email"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"ana@x.com"},"access_token":"tok","face_verified":true}`))
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u1","name":"Ana","email":"ana@x.com"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client())
	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	res, err := c.Login(context.Background(), "ana@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.FaceVerified)
	assert.Equal(t, "tok", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", me.Name)
}

func TestServerErrorMessageIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"insufficient funds"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	c.SetToken("tok")
	_, err := c.Send(context.Background(), "acc-1", "bob@x.com", "50.00")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "insufficient funds", apiErr.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
}

func TestDepositSendsQueryAndIdempotencyKey(t *testing.T) {
	var seen *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transaction_id":"tx1","saldo":"100.00","saldo_cents":10000}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	c.SetToken("tok")
	res, err := c.Deposit(context.Background(), "acc-1", "100.00", "pix")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.BalanceCents)

	require.NotNil(t, seen)
	assert.Equal(t, "/contas/adicionar-saldo/acc-1", seen.URL.Path)
	assert.Equal(t, "100.00", seen.URL.Query().Get("valor"))
	assert.Equal(t, "pix", seen.URL.Query().Get("metodo"))
	assert.NotEmpty(t, seen.Header.Get("Idempotency-Key"))
}

func TestLogoutForgetsTokenEvenOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token invalidated"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	c.SetToken("tok")
	err := c.Logout(context.Background())
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Empty(t, c.Token())
}
