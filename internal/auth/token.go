package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims carried by access and refresh tokens. Face is false on tokens
// issued before the face step of login has been passed.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Version int    `json:"ver"`
	Face    bool   `json:"face"`
	Use     string `json:"use"`
}

func signToken(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte, use string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Use != use || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
