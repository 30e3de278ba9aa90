package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frizbank/frizbank/internal/config"
	"github.com/frizbank/frizbank/internal/face"
	"github.com/frizbank/frizbank/internal/session"
	"github.com/frizbank/frizbank/internal/users"
)

var (
	ErrTokenRevoked = errors.New("token version invalidated")
	ErrFaceRequired = errors.New("face verification required")
)

// Service issues and validates tokens and drives the login flow.
type Service struct {
	cfg   config.Config
	users *users.Service
	bus   *session.Bus
	now   func() time.Time
}

// NewService wires the auth service. Login and logout events are published on bus.
func NewService(cfg config.Config, users *users.Service, bus *session.Bus) *Service {
	if bus == nil {
		bus = session.NewBus(nil)
	}
	return &Service{cfg: cfg, users: users, bus: bus, now: time.Now}
}

// TokenPair is returned once a login completes.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult describes where the user stands after a password login.
type LoginResult struct {
	User         users.User
	Tokens       TokenPair
	FaceVerified bool
}

// Login checks the password. When face verification is required the
// returned tokens only allow enrolling and verifying a face.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	if s.cfg.FaceRequired {
		access, err := s.sign(user, tokenAccess, false, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{User: user, Tokens: TokenPair{AccessToken: access, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}}, nil
	}
	return s.complete(ctx, user)
}

// VerifyFace finishes a pending login for userID.
func (s *Service) VerifyFace(ctx context.Context, userID string, candidate face.Descriptor) (LoginResult, face.Match, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return LoginResult{}, face.Match{}, err
	}
	user, match, err := s.users.VerifyFace(ctx, user.Email, candidate)
	if err != nil {
		return LoginResult{}, match, err
	}
	res, err := s.complete(ctx, user)
	return res, match, err
}

func (s *Service) complete(ctx context.Context, user users.User) (LoginResult, error) {
	pair, err := s.Issue(user)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.RecordLogin(ctx, user.ID); err != nil {
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}
	s.bus.Publish(session.Event{Type: session.EventLogin, UserID: user.ID, Email: user.Email})
	return LoginResult{User: user, Tokens: pair, FaceVerified: true}, nil
}

// Issue signs a full access and refresh token pair for user.
func (s *Service) Issue(user users.User) (TokenPair, error) {
	access, err := s.sign(user, tokenAccess, true, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user, tokenRefresh, true, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

func (s *Service) sign(user users.User, use string, faceVerified bool, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	return signToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:   user.Email,
		Version: user.TokenVersion,
		Face:    faceVerified,
		Use:     use,
	}, []byte(secret))
}

// Authenticate validates an access token and its version against the user record.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := parseToken(accessToken, []byte(s.cfg.JWTSecret), tokenAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if user.TokenVersion != claims.Version {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := parseToken(refreshToken, []byte(s.cfg.RefreshSecret), tokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if user.TokenVersion != claims.Version {
		return TokenPair{}, ErrTokenRevoked
	}
	access, err := s.sign(user, tokenAccess, claims.Face, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.users.BumpTokenVersion(ctx, userID); err != nil {
		return err
	}
	s.bus.Publish(session.Event{Type: session.EventLogout, UserID: user.ID, Email: user.Email})
	return nil
}
