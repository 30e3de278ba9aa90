package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizbank/frizbank/internal/auth"
	"github.com/frizbank/frizbank/internal/logging"
)

type stubAuthenticator map[string]*auth.Claims

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	switch token {
	case "revoked":
		return nil, auth.ErrTokenRevoked
	}
	claims, ok := s[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return claims, nil
}

func guardedApp() *fiber.App {
	tokens := stubAuthenticator{
		"full":    {RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}, Email: "ana@x.com", Face: true},
		"pending": {RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}, Email: "ana@x.com"},
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/me", JWTAuth(tokens), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	app.Get("/money", JWTAuth(tokens), RequireFace(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestJWTAuth(t *testing.T) {
	app := guardedApp()

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing header", "/me", "", fiber.StatusUnauthorized},
		{"unknown token", "/me", "garbage", fiber.StatusUnauthorized},
		{"revoked token", "/me", "revoked", fiber.StatusUnauthorized},
		{"pending token on profile", "/me", "pending", fiber.StatusOK},
		{"pending token on money route", "/money", "pending", fiber.StatusForbidden},
		{"full token on money route", "/money", "full", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, get(t, app, tt.path, tt.token))
		})
	}
}
