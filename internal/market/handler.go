package market

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler proxies market listings.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Markets handles GET /crypto/markets?vsCurrency=&perPage=.
func (h *Handler) Markets(c *fiber.Ctx) error {
	quotes, err := h.client.FetchMarkets(c.UserContext(), c.Query("vsCurrency"), c.QueryInt("perPage", DefaultPerPage))
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	if quotes == nil {
		quotes = []Quote{}
	}
	return c.JSON(quotes)
}
