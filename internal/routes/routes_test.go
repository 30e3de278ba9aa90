package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizbank/frizbank/internal/config"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/logging"
	"github.com/frizbank/frizbank/internal/middleware"
)

func testApp(t *testing.T, faceRequired bool) *fiber.App {
	t.Helper()
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	_, err := Setup(app, Deps{
		Cfg: config.Config{
			AppName:            "FrizBank",
			Env:                "test",
			JWTSecret:          "secret",
			RefreshSecret:      "refresh",
			AccessTokenTTL:     time.Minute,
			RefreshTokenTTL:    time.Hour,
			LoginRateLimit:     5,
			FaceMatchThreshold: 0.6,
			FaceRequired:       faceRequired,
			BaseCurrency:       "USD",
			EarningsSchedule:   "@every 30s",
			HTTPClientTimeout:  time.Second,
		},
		Logger: logger,
	})
	require.NoError(t, err)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func registerAndLogin(t *testing.T, app *fiber.App, email string) (string, string) {
	t.Helper()
	status, _ := do(t, app, http.MethodPost, "/users", "", `{"name":"Ana","email":"`+email+`","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, status)
	status, body := do(t, app, http.MethodPost, "/users/login", "", `{"email":"`+email+`","password":"secret1"}`)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	return body["access_token"].(string), user["id"].(string)
}

func TestHealthReportsMemoryBackends(t *testing.T) {
	app := testApp(t, false)
	status, body := do(t, app, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "memory", "redis": "memory"}, body["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := testApp(t, false)
	for _, path := range []string{"/dashboard", "/users/me", "/contas/anything"} {
		status, body := do(t, app, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, "missing bearer token", body["error"], path)
	}
}

func TestDepositAndStatementFlow(t *testing.T) {
	app := testApp(t, false)
	token, userID := registerAndLogin(t, app, "ana@x.com")

	status, acct := do(t, app, http.MethodGet, "/contas/usuario/"+userID, token, "")
	require.Equal(t, http.StatusOK, status)
	accountID := acct["id"].(string)
	assert.Equal(t, "0.00", acct["saldo"])

	status, dep := do(t, app, http.MethodPost, "/contas/adicionar-saldo/"+accountID+"?valor=100&metodo=pix", token, "")
	require.Equal(t, http.StatusCreated, status, dep)
	assert.Equal(t, "100.00", dep["saldo"])
	assert.Equal(t, "Balance added via PIX", dep["description"])

	status, view := do(t, app, http.MethodGet, "/contas/"+accountID, token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.00", view["saldo"])
	assert.Equal(t, "[+100.00]: Balance added via PIX;", view["extrato"])

	status, _ = do(t, app, http.MethodPost, "/contas/enviar/"+accountID+"?idDestino=&valor=10", token, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAccountsOfOthersAreForbidden(t *testing.T) {
	app := testApp(t, false)
	token, _ := registerAndLogin(t, app, "ana@x.com")
	_, bobID := registerAndLogin(t, app, "bob@x.com")

	status, _ := do(t, app, http.MethodGet, "/contas/usuario/"+bobID, token, "")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPendingFaceTokenCannotReachAccounts(t *testing.T) {
	app := testApp(t, true)
	token, userID := registerAndLogin(t, app, "ana@x.com")

	status, _ := do(t, app, http.MethodGet, "/users/me", token, "")
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodGet, "/contas/usuario/"+userID, token, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "face verification required", body["error"])
}

func descriptorBody(v float32) string {
	var d face.Descriptor
	for i := range d {
		d[i] = v
	}
	return `{"descriptor":"` + d.Encode() + `"}`
}

func TestPendingTokenCannotReplaceEnrolledFace(t *testing.T) {
	app := testApp(t, true)
	pending, userID := registerAndLogin(t, app, "ana@x.com")

	status, _ := do(t, app, http.MethodPost, "/users/"+userID+"/face", pending, descriptorBody(0.1))
	require.Equal(t, http.StatusCreated, status)

	status, body := do(t, app, http.MethodPost, "/users/login", "", `{"email":"ana@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["face_verified"])
	assert.Equal(t, true, body["face_enrolled"])
	pending = body["access_token"].(string)

	status, body = do(t, app, http.MethodPost, "/users/"+userID+"/face", pending, descriptorBody(-0.5))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "face already enrolled, verify it first", body["error"])

	status, _ = do(t, app, http.MethodDelete, "/users/"+userID+"/face", pending, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodPost, "/users/verify-face", pending, descriptorBody(-0.5))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = do(t, app, http.MethodPost, "/users/verify-face", pending, descriptorBody(0.1))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["face_verified"])
	full := body["access_token"].(string)

	status, _ = do(t, app, http.MethodPost, "/users/"+userID+"/face", full, descriptorBody(0.2))
	assert.Equal(t, http.StatusCreated, status)
}
