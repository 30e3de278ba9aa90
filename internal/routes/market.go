package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/fx"
	"github.com/frizbank/frizbank/internal/market"
)

// RegisterMarketRoutes wires the public lookups proxied to external APIs.
func RegisterMarketRoutes(r fiber.Router, m *market.Handler, x *fx.Handler, models *face.ModelsHandler) {
	r.Get("/crypto/markets", m.Markets)
	r.Get("/fx/rate", x.Rate)
	r.Get("/geo/currency", x.Currency)
	r.Get("/face/models", models.Get)
}
