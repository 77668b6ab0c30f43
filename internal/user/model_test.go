package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLocked(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&User{}).IsLocked(now))
	assert.False(t, (&User{LockedUntil: &past}).IsLocked(now))
	assert.True(t, (&User{LockedUntil: &future}).IsLocked(now))
}

func TestAttemptsRemaining(t *testing.T) {
	assert.Equal(t, 5, (&User{}).AttemptsRemaining(5))
	assert.Equal(t, 2, (&User{FailedLoginAttempts: 3}).AttemptsRemaining(5))
	assert.Equal(t, 0, (&User{FailedLoginAttempts: 7}).AttemptsRemaining(5))
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	u := &User{PasswordChangedAt: &changed}

	assert.False(t, (&User{}).ChangedPasswordAfter(changed))

	// Token issued before the change is stale.
	assert.True(t, u.ChangedPasswordAfter(changed.Add(-time.Minute)))

	// Token issued after the change is fine.
	assert.False(t, u.ChangedPasswordAfter(changed.Add(time.Minute)))

	// Comparison is in whole seconds: a token from the same second as the
	// change is accepted.
	assert.False(t, u.ChangedPasswordAfter(changed.Add(500*time.Millisecond)))
}
