package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNameRequired         = errors.New("please tell us your name")
	ErrEmailRequired        = errors.New("please provide your email")
	ErrInvalidEmailFormat   = errors.New("please provide a valid email")
	ErrPasswordRequired     = errors.New("please provide a password")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch     = errors.New("passwords are not the same")
	ErrInvalidCredentials   = errors.New("incorrect email or password")
	ErrAccountLocked        = errors.New("account is locked")
	ErrResetTokenInvalid    = errors.New("token is invalid or expired")
	ErrWrongCurrentPassword = errors.New("current password is wrong")
	ErrEmailSendFailed      = errors.New("failed to send email")
)

// FailedLoginError is a wrong-password rejection carrying how many
// attempts remain before lockout. Unwraps to ErrInvalidCredentials so the
// uniform incorrect-email-or-password handling still matches.
type FailedLoginError struct {
	Remaining int
}

func (e *FailedLoginError) Error() string {
	return fmt.Sprintf("incorrect email or password, %d attempts left", e.Remaining)
}

func (e *FailedLoginError) Unwrap() error {
	return ErrInvalidCredentials
}
