package webserver

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TokenClaims is the JWT payload issued at login.
type TokenClaims struct {
	Email string `json:"email"`
	Level string `json:"level"`
	jwt.RegisteredClaims
}

// NewTokenClaims is the claims factory for the jwt middleware.
func NewTokenClaims(c echo.Context) jwt.Claims {
	return new(TokenClaims)
}

// IssueToken signs a bearer token for an authenticated operator.
func IssueToken(secret, email, level string, ttl time.Duration) (string, error) {
	claims := &TokenClaims{
		Email: email,
		Level: level,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// CurrentClaims returns the claims of the authenticated request, or
// nil on unauthenticated routes.
func CurrentClaims(c echo.Context) *TokenClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
