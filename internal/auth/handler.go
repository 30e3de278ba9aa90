package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/frizbank/frizbank/internal/accounts"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/users"
)

// Handler exposes login, face verification, refresh and logout.
type Handler struct {
	svc      *Service
	accounts *accounts.Service
}

func NewHandler(svc *Service, accounts *accounts.Service) *Handler {
	return &Handler{svc: svc, accounts: accounts}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyFaceRequest struct {
	Descriptor string `json:"descriptor"`
}

// LoginResponse is returned by login and face verification.
type LoginResponse struct {
	User         users.Response `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresIn    int64          `json:"expires_in"`
	FaceVerified bool           `json:"face_verified"`
	FaceEnrolled bool           `json:"face_enrolled"`
	AccountID    string         `json:"account_id,omitempty"`
	Distance     *float64       `json:"distance,omitempty"`
}

func (h *Handler) respond(c *fiber.Ctx, res LoginResult, distance *float64) error {
	out := LoginResponse{
		User:         users.ToResponse(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
		FaceVerified: res.FaceVerified,
		FaceEnrolled: res.User.HasFace(),
		Distance:     distance,
	}
	if res.FaceVerified && h.accounts != nil {
		if a, err := h.accounts.EnsureForOwner(c.UserContext(), res.User.ID); err == nil {
			out.AccountID = a.ID
		}
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Login validates credentials and returns a full or face-pending token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return h.respond(c, res, nil)
}

// VerifyFace exchanges a pending token and a matching descriptor for a token pair.
func (h *Handler) VerifyFace(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	var req verifyFaceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d, err := face.Decode(req.Descriptor)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, match, err := h.svc.VerifyFace(c.UserContext(), uid, d)
	if err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return h.respond(c, res, &match.Distance)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return fiber.NewError(statusFor(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized
	default:
		return users.StatusFor(err)
	}
}
