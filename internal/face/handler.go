package face

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ModelsHandler reports which source serves the face models.
type ModelsHandler struct {
	loader *ModelLoader
}

func NewModelsHandler(loader *ModelLoader) *ModelsHandler {
	return &ModelsHandler{loader: loader}
}

// Get handles GET /face/models. The first call probes the sources.
func (h *ModelsHandler) Get(c *fiber.Ctx) error {
	src, err := h.loader.Load(c.UserContext())
	if errors.Is(err, ErrModelsUnavailable) {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusGatewayTimeout, err.Error())
	}
	return c.JSON(fiber.Map{
		"source":    src,
		"manifests": ModelManifests,
		"threshold": DefaultThreshold,
	})
}
