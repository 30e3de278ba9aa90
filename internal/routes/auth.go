package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/auth"
)

// RegisterAuthRoutes wires token refresh and logout.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, g Guards) {
	group := r.Group("/auth")
	group.Post("/login", g.LoginLimit, h.Login)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", g.Auth, h.Logout)
}
