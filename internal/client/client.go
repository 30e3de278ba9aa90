// Package client is a typed HTTP client for the FrizBank API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/auth"
	"github.com/frizbank/frizbank/internal/dashboard"
	"github.com/frizbank/frizbank/internal/deposits"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/market"
	"github.com/frizbank/frizbank/internal/transfers"
	"github.com/frizbank/frizbank/internal/users"
)

const (
	// BaseURLEnv overrides DefaultBaseURL.
	BaseURLEnv     = "FRIZBANK_API_URL"
	DefaultBaseURL = "http://localhost:8080"

	defaultTimeout = 15 * time.Second
)

// ErrUnauthenticated is returned by calls that need a token when none is set.
var ErrUnauthenticated = errors.New("not logged in")

// APIError carries the status and the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// StatusOf returns the HTTP status of an APIError, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// BaseURLFromEnv reads FRIZBANK_API_URL, falling back to DefaultBaseURL.
func BaseURLFromEnv() string {
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		return v
	}
	return DefaultBaseURL
}

// Client talks to one API base URL. The access token is shared by every call.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New builds a client. A trailing slash on baseURL is dropped.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetToken replaces the bearer token; an empty token clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates a user.
func (c *Client) Register(ctx context.Context, name, email, password string) (users.Response, error) {
	var out users.Response
	body := map[string]string{"name": name, "email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/users", nil, body, &out, false)
	return out, err
}

// Login checks the password. When the response is not face-verified the
// token it carries only allows enrolling and verifying a face.
func (c *Client) Login(ctx context.Context, email, password string) (auth.LoginResponse, error) {
	var out auth.LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/login", nil, body, &out, false); err != nil {
		return out, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// VerifyFace completes a pending login with a live descriptor.
func (c *Client) VerifyFace(ctx context.Context, d face.Descriptor) (auth.LoginResponse, error) {
	var out auth.LoginResponse
	body := map[string]string{"descriptor": d.Encode()}
	if err := c.do(ctx, http.MethodPost, "/users/verify-face", nil, body, &out, true); err != nil {
		return out, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// EnrollFace stores d as the reference descriptor of userID.
func (c *Client) EnrollFace(ctx context.Context, userID string, d face.Descriptor) error {
	body := map[string]string{"descriptor": d.Encode()}
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/face", nil, body, nil, true)
}

// ClearFace removes the enrolled descriptors of userID.
func (c *Client) ClearFace(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/face", nil, nil, nil, true)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (users.Response, error) {
	var out users.Response
	err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &out, true)
	return out, err
}

// ProfileUpdate lists the fields to change; nil fields are kept.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UpdateProfile edits the authenticated user's profile.
func (c *Client) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (users.Response, error) {
	var out users.Response
	err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), nil, in, &out, true)
	return out, err
}

// Refresh trades a refresh token for a new access token and keeps it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	var out auth.TokenPair
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, body, &out, false); err != nil {
		return out, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// Logout revokes every token of the user and forgets the local one.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, true)
	c.SetToken("")
	return err
}

// AccountByOwner returns the account of userID with its balance.
func (c *Client) AccountByOwner(ctx context.Context, userID string) (accounts.Response, error) {
	var out accounts.Response
	err := c.do(ctx, http.MethodGet, "/contas/usuario/"+url.PathEscape(userID), nil, nil, &out, true)
	return out, err
}

// Account returns an account with its latest transactions.
func (c *Client) Account(ctx context.Context, accountID string) (accounts.Response, error) {
	var out accounts.Response
	err := c.do(ctx, http.MethodGet, "/contas/"+url.PathEscape(accountID), nil, nil, &out, true)
	return out, err
}

// Deposit adds amount ("100.00") to accountID through method (pix, card or bank).
func (c *Client) Deposit(ctx context.Context, accountID, amount, method string) (deposits.Response, error) {
	var out deposits.Response
	q := url.Values{"valor": {amount}}
	if method != "" {
		q.Set("metodo", method)
	}
	err := c.do(ctx, http.MethodPost, "/contas/adicionar-saldo/"+url.PathEscape(accountID), q, nil, &out, true)
	return out, err
}

// Send moves amount from accountID to an account id, a registered email or
// an external key.
func (c *Client) Send(ctx context.Context, accountID, destination, amount string) (transfers.Response, error) {
	var out transfers.Response
	q := url.Values{"idDestino": {destination}, "valor": {amount}}
	err := c.do(ctx, http.MethodPost, "/contas/enviar/"+url.PathEscape(accountID), q, nil, &out, true)
	return out, err
}

// Markets lists the top perPage cryptocurrencies priced in vsCurrency.
func (c *Client) Markets(ctx context.Context, vsCurrency string, perPage int) ([]market.Quote, error) {
	var out []market.Quote
	q := url.Values{}
	if vsCurrency != "" {
		q.Set("vsCurrency", vsCurrency)
	}
	if perPage > 0 {
		q.Set("perPage", strconv.Itoa(perPage))
	}
	err := c.do(ctx, http.MethodGet, "/crypto/markets", q, nil, &out, false)
	return out, err
}

// Rate returns the conversion rate between two currency codes.
func (c *Client) Rate(ctx context.Context, from, to string) (float64, error) {
	var out struct {
		Rate float64 `json:"rate"`
	}
	q := url.Values{"from": {from}, "to": {to}}
	err := c.do(ctx, http.MethodGet, "/fx/rate", q, nil, &out, false)
	return out.Rate, err
}

// CurrencyAt resolves the country and currency of a coordinate.
func (c *Client) CurrencyAt(ctx context.Context, lat, lon float64) (country, currency string, err error) {
	var out struct {
		Country  string `json:"country"`
		Currency string `json:"currency"`
	}
	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	err = c.do(ctx, http.MethodGet, "/geo/currency", q, nil, &out, false)
	return out.Country, out.Currency, err
}

// FaceModels describes the weight source the server resolved.
type FaceModels struct {
	Source    string   `json:"source"`
	Manifests []string `json:"manifests"`
	Threshold float64  `json:"threshold"`
}

func (c *Client) FaceModels(ctx context.Context) (FaceModels, error) {
	var out FaceModels
	err := c.do(ctx, http.MethodGet, "/face/models", nil, nil, &out, false)
	return out, err
}

// Dashboard loads the aggregated view in currency; empty means the
// server's base currency.
func (c *Client) Dashboard(ctx context.Context, currency string) (dashboard.View, error) {
	var out dashboard.View
	q := url.Values{}
	if currency != "" {
		q.Set("currency", currency)
	}
	err := c.do(ctx, http.MethodGet, "/dashboard", q, nil, &out, true)
	return out, err
}

type preferences struct {
	DarkMode bool `json:"dark_mode"`
}

func (c *Client) DarkMode(ctx context.Context, userID string) (bool, error) {
	var out preferences
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/preferences", nil, nil, &out, true)
	return out.DarkMode, err
}

func (c *Client) SetDarkMode(ctx context.Context, userID string, on bool) error {
	return c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/preferences", nil, preferences{DarkMode: on}, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any, authed bool) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrUnauthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/contas/") {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
