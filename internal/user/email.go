package user

import (
	"errors"
	"net/mail"
	"strings"
)

var ErrInvalidEmail = errors.New("invalid email address")

// NormalizeEmail validates an email address and lowercases it. Every path
// that writes users.email goes through this, so the case-sensitive unique
// column only ever holds one spelling per address and login's lowercased
// lookup always matches.
func NormalizeEmail(email string) (string, error) {
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
