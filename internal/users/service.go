package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/frizbank/frizbank/internal/face"
)

// Service manages the user lifecycle.
type Service struct {
	repo    Repository
	matcher face.Matcher
	now     func() time.Time
}

// NewService creates a new user service matching faces with matcher.
func NewService(repo Repository, matcher face.Matcher) *Service {
	return &Service{repo: repo, matcher: matcher, now: time.Now}
}

// Register creates a user. It does not start a session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return User{}, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// RecordLogin stamps the last successful login.
func (s *Service) RecordLogin(ctx context.Context, id string) error {
	return s.repo.TouchLogin(ctx, id, s.now())
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByEmail fetches a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Update edits the profile. A changed email must stay unique and a new
// password obeys the registration rules.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// EnrollFace stores d as the user's only descriptor.
func (s *Service) EnrollFace(ctx context.Context, id string, d face.Descriptor) error {
	return s.repo.SetFace(ctx, id, &d)
}

// EnrollFirstFace stores d unless a descriptor is already enrolled. Tokens
// still pending the face step may only enroll this way.
func (s *Service) EnrollFirstFace(ctx context.Context, id string, d face.Descriptor) error {
	return s.repo.AddFace(ctx, id, d)
}

// ClearFace removes the enrolled descriptor so it can be captured again.
func (s *Service) ClearFace(ctx context.Context, id string) error {
	return s.repo.SetFace(ctx, id, nil)
}

// VerifyFace matches candidate against the descriptor enrolled for email.
func (s *Service) VerifyFace(ctx context.Context, email string, candidate face.Descriptor) (User, face.Match, error) {
	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, face.Match{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, face.Match{}, err
	}
	if user.Face == nil {
		return User{}, face.Match{}, ErrNoFaceEnrolled
	}
	match, err := s.matcher.FindBestMatch(candidate, *user.Face)
	if err != nil {
		return User{}, face.Match{}, err
	}
	if !match.OK {
		return User{}, match, face.ErrNoMatch
	}
	return user, match, nil
}

// BumpTokenVersion invalidates every token issued so far.
func (s *Service) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	return s.repo.UpdateTokenVersion(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}
