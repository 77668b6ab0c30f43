package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the domain model. Credential, lockout and reset fields are
// carried for the auth flows but never serialized.
type User struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role"`
	PasswordHash         string     `json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	FailedLoginAttempts  int        `json:"-"`
	LockedUntil          *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsLocked reports whether a lockout is set and still in the future.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// AttemptsRemaining returns how many failed logins are left before lockout.
func (u *User) AttemptsRemaining(maxAttempts int) int {
	remaining := maxAttempts - u.FailedLoginAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time. Comparison is in whole seconds; the repository
// backdates password_changed_at by one second on change, so a token issued
// in the same second as the change is still accepted.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}
