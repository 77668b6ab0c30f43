package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is what a verified session token carries.
type Claims struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService signs and verifies stateless session tokens.
// Implementations: JWTService (HS256) and PasetoService (v4.local).
type TokenService interface {
	Issue(userID uuid.UUID) (string, error)
	Verify(tokenStr string) (*Claims, error)
}
