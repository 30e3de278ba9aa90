package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/auth"
)

// TokenAuthenticator validates an access token. *auth.Service satisfies it.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// JWTAuth returns a middleware that validates bearer access tokens, including
// their token version, and stores the subject in the request locals.
func JWTAuth(svc TokenAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := svc.Authenticate(c.UserContext(), tokenStr)
		if errors.Is(err, auth.ErrTokenRevoked) {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", claims.Subject)
		c.Locals("email", claims.Email)
		c.Locals("token_version", claims.Version)
		c.Locals("face_verified", claims.Face)
		return c.Next()
	}
}

// RequireFace rejects tokens issued before the face step of login.
func RequireFace() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ok, _ := c.Locals("face_verified").(bool); !ok {
			return fiber.NewError(http.StatusForbidden, auth.ErrFaceRequired.Error())
		}
		return c.Next()
	}
}
