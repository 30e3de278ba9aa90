package users

import (
	"errors"
	"time"

	"github.com/frizbank/frizbank/internal/face"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoFaceEnrolled     = errors.New("face recognition not configured for this user")
	ErrFaceEnrolled       = errors.New("face already enrolled, verify it first")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// User is a registered account holder.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	Face         *face.Descriptor
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// HasFace reports whether a face descriptor is enrolled.
func (u User) HasFace() bool {
	return u.Face != nil
}

// RegisterInput captures the fields of the registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateInput carries profile changes; nil fields are left untouched.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
}
