package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/auth"
	"github.com/frizbank/frizbank/internal/dashboard"
	"github.com/frizbank/frizbank/internal/users"
)

// RegisterUserRoutes wires registration, login, profile and face enrollment.
// Face verification and first-time enrollment accept tokens still pending
// the face step.
func RegisterUserRoutes(r fiber.Router, h *users.Handler, a *auth.Handler, d *dashboard.Handler, g Guards) {
	group := r.Group("/users")
	group.Post("/", h.Register)
	group.Post("/login", g.LoginLimit, a.Login)
	group.Post("/verify-face", g.Auth, a.VerifyFace)
	group.Get("/me", g.Auth, h.Me)
	group.Put("/:id", g.Auth, g.Face, h.Update)
	group.Post("/:id/face", g.Auth, h.EnrollFace)
	group.Delete("/:id/face", g.Auth, g.Face, h.ClearFace)
	group.Get("/:id/preferences", g.Auth, d.Preferences)
	group.Put("/:id/preferences", g.Auth, d.UpdatePreferences)
}
