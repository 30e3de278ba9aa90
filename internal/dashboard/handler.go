package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/fx"
	"github.com/frizbank/frizbank/internal/users"
)

// Handler serves the dashboard and the theme preference.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET /dashboard?currency= or ?lat=&lon=.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	opts := Options{Currency: c.Query("currency")}
	if rawLat, rawLon := c.Query("lat"), c.Query("lon"); rawLat != "" || rawLon != "" {
		lat, errLat := strconv.ParseFloat(rawLat, 64)
		lon, errLon := strconv.ParseFloat(rawLon, 64)
		if errLat != nil || errLon != nil {
			return fiber.NewError(http.StatusBadRequest, "lat and lon must be numbers")
		}
		opts.Lat, opts.Lon = &lat, &lon
	}

	view, err := h.svc.Build(c.UserContext(), uid, opts)
	if err != nil {
		if errors.Is(err, fx.ErrUnknownCurrency) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(users.StatusFor(err), err.Error())
	}
	return c.JSON(view)
}

type preferences struct {
	DarkMode *bool `json:"dark_mode"`
}

// Preferences handles GET /users/:id/preferences.
func (h *Handler) Preferences(c *fiber.Ctx) error {
	email, err := h.self(c)
	if err != nil {
		return err
	}
	on, err := h.svc.DarkMode(c.UserContext(), email)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"dark_mode": on})
}

// UpdatePreferences handles PUT /users/:id/preferences.
func (h *Handler) UpdatePreferences(c *fiber.Ctx) error {
	email, err := h.self(c)
	if err != nil {
		return err
	}
	var req preferences
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.DarkMode == nil {
		return fiber.NewError(http.StatusBadRequest, "dark_mode is required")
	}
	if err := h.svc.SetDarkMode(c.UserContext(), email, *req.DarkMode); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"dark_mode": *req.DarkMode})
}

func (h *Handler) self(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" || c.Params("id") != uid {
		return "", fiber.NewError(http.StatusForbidden, "cannot access another user's preferences")
	}
	email, _ := c.Locals("email").(string)
	if email == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	return email, nil
}
