package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/face"
)

// Handler exposes user endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a user HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type faceRequest struct {
	Descriptor string `json:"descriptor"`
}

// Response is the public view of a user.
type Response struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	HasFace   bool       `json:"has_face"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// ToResponse strips credentials from u.
func ToResponse(u User) Response {
	return Response{ID: u.ID, Name: u.Name, Email: u.Email, HasFace: u.HasFace(), CreatedAt: u.CreatedAt, LastLogin: u.LastLogin}
}

// Register handles POST /users.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Register(c.UserContext(), RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(user))
}

// Me returns the authenticated user.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	user, err := h.service.Get(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.JSON(ToResponse(user))
}

// Update handles PUT /users/:id for the authenticated user only.
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := h.self(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.Update(c.UserContext(), id, UpdateInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.JSON(ToResponse(user))
}

// EnrollFace handles POST /users/:id/face. A token pending the face step can
// only enroll the first descriptor.
func (h *Handler) EnrollFace(c *fiber.Ctx) error {
	id, err := h.self(c)
	if err != nil {
		return err
	}
	var req faceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := face.Decode(req.Descriptor)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	enroll := h.service.EnrollFace
	if verified, _ := c.Locals("face_verified").(bool); !verified {
		enroll = h.service.EnrollFirstFace
	}
	if err := enroll(c.UserContext(), id, d); err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"status": "enrolled"})
}

// ClearFace handles DELETE /users/:id/face.
func (h *Handler) ClearFace(c *fiber.Ctx) error {
	id, err := h.self(c)
	if err != nil {
		return err
	}
	if err := h.service.ClearFace(c.UserContext(), id); err != nil {
		return fiber.NewError(StatusFor(err), err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) self(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	if c.Params("id") != uid {
		return "", fiber.NewError(http.StatusForbidden, "cannot modify another user")
	}
	return uid, nil
}

// StatusFor maps user errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, face.ErrInvalidDescriptor):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrFaceEnrolled):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, face.ErrNoMatch):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNoFaceEnrolled):
		return http.StatusPreconditionRequired
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
