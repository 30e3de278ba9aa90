package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/dashboard"
)

// RegisterDashboardRoutes exposes the aggregated dashboard view.
func RegisterDashboardRoutes(r fiber.Router, h *dashboard.Handler, g Guards) {
	r.Get("/dashboard", g.Auth, g.Face, h.Get)
}
