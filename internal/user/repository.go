package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// passwordChangeBackdate tolerates the race between changing a password and
// issuing the token for the same request: the change timestamp is moved one
// second into the past so the fresh token is not rejected as stale.
const passwordChangeBackdate = time.Second

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// activeOnly is the predicate composed into every read so deactivated
// accounts are invisible to all default lookups.
func activeOnly(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.active = TRUE")
}

// CreateParams carries the validated fields for a new user.
type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, params CreateParams) (*User, error) {
	dbUser := &database.User{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Active:       true,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves an active user by email, credential columns included.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := activeOnly(r.db.NewSelect().Model(dbUser)).
		Where("?TableAlias.email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves an active user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := activeOnly(r.db.NewSelect().Model(dbUser)).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByResetTokenHash retrieves the user holding an unexpired reset token.
func (r *Repository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	dbUser := new(database.User)
	err := activeOnly(r.db.NewSelect().Model(dbUser)).
		Where("?TableAlias.password_reset_token = ?", tokenHash).
		Where("?TableAlias.password_reset_expires > now()").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// RecordFailedAttempt bumps the failed-login counter in a single atomic
// update and sets the lockout expiry once the configured maximum is
// reached. Only the two lockout columns are touched. Returns the new
// counter value.
func (r *Repository) RecordFailedAttempt(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, error) {
	var attempts int

	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("failed_login_attempts = failed_login_attempts + 1").
		Set("locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN now() + make_interval(secs => ?) ELSE locked_until END",
			maxAttempts, lockFor.Seconds()).
		Where("id = ?", id).
		Returning("failed_login_attempts").
		Exec(ctx, &attempts)

	if err != nil {
		return 0, fmt.Errorf("failed to record failed login attempt: %w", err)
	}

	return attempts, nil
}

// ResetFailedAttempts clears the counter and lockout expiry after a
// successful login.
func (r *Repository) ResetFailedAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("failed_login_attempts = 0").
		Set("locked_until = NULL").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}

	return nil
}

// SetPasswordReset stores the reset token hash and its expiry.
func (r *Repository) SetPasswordReset(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_reset_token = ?", tokenHash).
		Set("password_reset_expires = ?", expires).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set password reset token: %w", err)
	}

	return requireRows(result)
}

// ClearPasswordReset removes the reset token fields, either after a
// successful reset or to roll back when the reset email cannot be sent.
func (r *Repository) ClearPasswordReset(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_reset_token = NULL").
		Set("password_reset_expires = NULL").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to clear password reset token: %w", err)
	}

	return nil
}

// UpdatePassword stores a new password hash, backdates the change
// timestamp by one second and invalidates any outstanding reset token.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	changedAt := time.Now().Add(-passwordChangeBackdate)

	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("password_changed_at = ?", changedAt).
		Set("password_reset_token = NULL").
		Set("password_reset_expires = NULL").
		Set("updated_at = now()").
		Set("version = version + 1").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRows(result)
}

// ProfileUpdate carries the fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Photo *string
}

// UpdateProfile applies a partial profile update and returns the updated user.
// A new email is validated and lowercased before it is persisted.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error) {
	if update.Email != nil {
		normalized, err := NormalizeEmail(*update.Email)
		if err != nil {
			return nil, ErrInvalidEmail
		}
		update.Email = &normalized
	}

	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = now()").
		Set("version = version + 1").
		Where("id = ?", id).
		Where("active = TRUE")

	if update.Name != nil {
		q = q.Set("name = ?", *update.Name)
	}
	if update.Email != nil {
		q = q.Set("email = ?", *update.Email)
	}
	if update.Photo != nil {
		q = q.Set("photo = ?", *update.Photo)
	}

	dbUser := new(database.User)
	result, err := q.Returning("*").Exec(ctx, dbUser)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := requireRows(result); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

// Deactivate soft-deletes the account; every read filters it out from then on.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	return requireRows(result)
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                   dbu.ID,
		Name:                 dbu.Name,
		Email:                dbu.Email,
		Photo:                dbu.Photo,
		Role:                 dbu.Role,
		PasswordHash:         dbu.PasswordHash,
		PasswordChangedAt:    dbu.PasswordChangedAt,
		PasswordResetToken:   dbu.PasswordResetToken,
		PasswordResetExpires: dbu.PasswordResetExpires,
		Active:               dbu.Active,
		FailedLoginAttempts:  dbu.FailedLoginAttempts,
		LockedUntil:          dbu.LockedUntil,
		CreatedAt:            dbu.CreatedAt,
	}
}
