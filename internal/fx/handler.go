package fx

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes rate and location lookups.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Rate handles GET /fx/rate?from=&to=.
func (h *Handler) Rate(c *fiber.Ctx) error {
	from, err := ParseCurrency(c.Query("from", DefaultCurrency))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	to, err := ParseCurrency(c.Query("to", DefaultCurrency))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"from": from, "to": to, "rate": h.svc.Rate(c.UserContext(), from, to)})
}

// Currency handles GET /geo/currency?lat=&lon=.
func (h *Handler) Currency(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fiber.NewError(http.StatusBadRequest, "lat and lon must be valid coordinates")
	}
	country, code := h.svc.CurrencyForCoordinates(c.UserContext(), lat, lon)
	return c.JSON(fiber.Map{"country": country, "currency": code})
}
