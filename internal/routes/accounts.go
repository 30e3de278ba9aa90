package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/deposits"
	"github.com/frizbank/frizbank/internal/transfers"
)

// RegisterAccountRoutes wires the /contas endpoints. Every route needs a
// face-verified token; money movements also honour Idempotency-Key.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler, dep *deposits.Handler, tr *transfers.Handler, g Guards) {
	group := r.Group("/contas", g.Auth, g.Face)
	group.Post("/", h.Create)
	group.Get("/usuario/:userId", h.ByOwner)
	group.Post("/adicionar-saldo/:id", g.Idempotency, dep.AddBalance)
	group.Post("/enviar/:id", g.Idempotency, tr.Send)
	group.Get("/:id", h.Get)
}
