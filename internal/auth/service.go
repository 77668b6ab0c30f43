package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/user"
)

// UserStore is what the auth flows need from user persistence.
// *user.Repository satisfies it.
type UserStore interface {
	Create(ctx context.Context, params user.CreateParams) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*user.User, error)
	RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, error)
	ResetFailedAttempts(ctx context.Context, id uuid.UUID) error
	SetPasswordReset(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error
	ClearPasswordReset(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendWelcomeEmail(ctx context.Context, toEmail, name, url string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, name, resetURL string) error
}

// Service handles authentication business logic: password hashing and
// verification, failed-login accounting, lockout, and the reset token
// lifecycle.
type Service struct {
	users            UserStore
	emailService     EmailService
	logger           *logging.Logger
	maxLoginAttempts int
	lockDuration     time.Duration
	resetTokenTTL    time.Duration
	bcryptCost       int
	publicURL        string
}

func NewService(
	users UserStore,
	emailService EmailService,
	logger *logging.Logger,
	maxLoginAttempts int,
	lockDuration time.Duration,
	resetTokenTTL time.Duration,
	bcryptCost int,
	publicURL string,
) *Service {
	return &Service{
		users:            users,
		emailService:     emailService,
		logger:           logger,
		maxLoginAttempts: maxLoginAttempts,
		lockDuration:     lockDuration,
		resetTokenTTL:    resetTokenTTL,
		bcryptCost:       bcryptCost,
		publicURL:        publicURL,
	}
}

// SignupParams is the unvalidated signup input.
type SignupParams struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Signup validates the input, hashes the password and creates the user.
// Password/confirmation mismatch is rejected before anything is persisted.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*user.User, error) {
	if params.Name == "" {
		return nil, ErrNameRequired
	}
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password, params.PasswordConfirm); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.CreateParams{
		Name:         params.Name,
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send welcome email in a goroutine (non-blocking); signup succeeds
	// even if the email does not go out.
	go func() {
		emailCtx := context.Background()
		url := s.publicURL + "/me"
		if err := s.emailService.SendWelcomeEmail(emailCtx, newUser.Email, newUser.Name, url); err != nil {
			s.logger.Warn("failed to send welcome email", "email", newUser.Email, "error", err)
		}
	}()

	return newUser, nil
}

// Login authenticates a user. Lockout is checked before the password is
// compared, so a correct password during lockout is still rejected. A
// wrong password under no lock increments the counter atomically and the
// rejection reports the attempts remaining.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Uniform message; never reveal whether the email is registered.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.IsLocked(time.Now()) {
		return nil, ErrAccountLocked
	}

	if !s.verifyPassword(password, existingUser.PasswordHash) {
		attempts, err := s.users.RecordFailedAttempt(ctx, existingUser.ID, s.maxLoginAttempts, s.lockDuration)
		if err != nil {
			return nil, fmt.Errorf("failed to record login attempt: %w", err)
		}
		remaining := s.maxLoginAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &FailedLoginError{Remaining: remaining}
	}

	// Successful login clears the counter and lockout expiry regardless of
	// prior state.
	if err := s.users.ResetFailedAttempts(ctx, existingUser.ID); err != nil {
		return nil, fmt.Errorf("failed to reset login attempts: %w", err)
	}

	return existingUser, nil
}

// ForgotPassword creates a reset token for the account and mails the
// plaintext to the user. Only the SHA-256 hash is persisted. If the email
// cannot be sent the token fields are rolled back so the account is not
// left in limbo.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	resetToken, err := s.createResetToken(ctx, existingUser.ID)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", s.publicURL, resetToken)
	if err := s.emailService.SendPasswordResetEmail(ctx, existingUser.Email, existingUser.Name, resetURL); err != nil {
		s.logger.Error("failed to send password reset email", "email", existingUser.Email, "error", err)
		if clearErr := s.users.ClearPasswordReset(ctx, existingUser.ID); clearErr != nil {
			s.logger.Error("failed to roll back reset token", "error", clearErr)
		}
		return ErrEmailSendFailed
	}

	return nil
}

// ResetPassword consumes a reset token and stores the new password. The
// token is single-use: the stored hash and expiry are cleared with the
// password update.
func (s *Service) ResetPassword(ctx context.Context, token, password, passwordConfirm string) (*user.User, error) {
	existingUser, err := s.users.GetByResetTokenHash(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	if err := validatePassword(password, passwordConfirm); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, existingUser.ID, passwordHash); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	return existingUser, nil
}

// UpdatePassword changes the password of an authenticated user after
// verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, current, password, passwordConfirm string) (*user.User, error) {
	existingUser, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.verifyPassword(current, existingUser.PasswordHash) {
		return nil, ErrWrongCurrentPassword
	}

	if err := validatePassword(password, passwordConfirm); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, existingUser.ID, passwordHash); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	return existingUser, nil
}

// createResetToken generates a random token, persists its hash and expiry
// on the user, and returns the plaintext for out-of-band delivery.
func (s *Service) createResetToken(ctx context.Context, userID uuid.UUID) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	resetToken := hex.EncodeToString(b)

	expires := time.Now().Add(s.resetTokenTTL)
	if err := s.users.SetPasswordReset(ctx, userID, hashResetToken(resetToken), expires); err != nil {
		return "", err
	}

	return resetToken, nil
}

// hashPassword runs the adaptive one-way hash; only ever called when the
// password actually changes.
func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword checks a candidate against the stored hash.
func (s *Service) verifyPassword(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// hashResetToken is the one-way hash applied before a reset token touches
// the database; plaintext tokens are never stored.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validatePassword(password, passwordConfirm string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if password != passwordConfirm {
		return ErrPasswordMismatch
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	if email == "" {
		return "", ErrEmailRequired
	}
	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return "", ErrInvalidEmailFormat
	}
	return normalized, nil
}
