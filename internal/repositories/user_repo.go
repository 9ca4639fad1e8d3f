package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/database"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id::text, email, name, password_hash, failed_login_attempts, last_failed_login, last_login,
	account_locked_until, reset_token_hash, reset_expires, password_changed_at, created_at, updated_at`

// UserRepository persists accounts and their security records
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash, resetTokenHash *string

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Name, &passwordHash, &user.FailedLoginAttempts,
		&user.LastFailedLogin, &user.LastLogin, &user.AccountLockedUntil,
		&resetTokenHash, &user.ResetExpires, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	if resetTokenHash != nil {
		user.ResetTokenHash = *resetTokenHash
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks up an account case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	return scanUserRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	now := time.Now().UTC()
	if !user.CreatedAt.IsZero() {
		now = user.CreatedAt
	}

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, failed_login_attempts, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Name, passwordHash, user.PasswordChangedAt, now,
	))
}

// IncrementFailedLogins atomically bumps the failure counter and returns its new value.
// Returns models.ErrNotFound when no account has the email.
func (r *UserRepository) IncrementFailedLogins(ctx context.Context, email string, at time.Time) (string, int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = $2, updated_at = $2
		WHERE lower(email) = lower($1)
		RETURNING id::text, failed_login_attempts
	`

	var id string
	var attempts int
	if err := r.pool.QueryRow(ctx, query, strings.TrimSpace(email), at).Scan(&id, &attempts); err != nil {
		return "", 0, database.MapPostgresError(err)
	}

	return id, attempts, nil
}

// LockAccount sets the lock expiry and zeroes the counter, but only while the
// counter is at or above threshold and no lock is in effect at now. It reports
// whether this call applied the lock; an active lock is never extended.
func (r *UserRepository) LockAccount(ctx context.Context, id string, threshold int, now, until time.Time) (bool, error) {
	query := `
		UPDATE users
		SET account_locked_until = $4, failed_login_attempts = 0, updated_at = $3
		WHERE id = $1
		  AND failed_login_attempts >= $2
		  AND (account_locked_until IS NULL OR account_locked_until <= $3)
	`

	result, err := r.pool.Exec(ctx, query, id, threshold, now, until)
	if err != nil {
		return false, fmt.Errorf("failed to lock account: %w", database.MapPostgresError(err))
	}

	return result.RowsAffected() == 1, nil
}

// RecordSuccessfulLogin zeroes the counter, clears any lock and stamps last_login.
// It returns the failure count the account had before the reset.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) (int, error) {
	query := `
		UPDATE users u
		SET failed_login_attempts = 0, account_locked_until = NULL, last_login = $2, updated_at = $2
		FROM users prev
		WHERE prev.id = u.id AND u.id = $1
		RETURNING prev.failed_login_attempts
	`

	var previous int
	if err := r.pool.QueryRow(ctx, query, id, at).Scan(&previous); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return previous, nil
}

// ClearFailedLogins zeroes the counter and clears any lock
func (r *UserRepository) ClearFailedLogins(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, account_locked_until = NULL, updated_at = $2
		WHERE id = $1
	`

	return r.execOne(ctx, query, id, at)
}

// SetResetToken stores a reset token digest with its expiry, replacing any outstanding token
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expires, at time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_expires = $3, updated_at = $4
		WHERE id = $1
	`

	return r.execOne(ctx, query, id, tokenHash, expires, at)
}

// GetByResetTokenHash finds the account holding an unexpired token with this digest
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1 AND reset_expires > $2`

	return scanUserRow(r.pool.QueryRow(ctx, query, tokenHash, now))
}

// ConsumeResetToken sets the new password hash and clears the token pair and
// lockout state in one statement, provided the token is still valid at now.
// It reports the account id and whether a lockout or failure count was cleared.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error) {
	query := `
		UPDATE users u
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires = NULL,
		    failed_login_attempts = 0,
		    account_locked_until = NULL,
		    password_changed_at = $3,
		    updated_at = $3
		FROM users prev
		WHERE prev.id = u.id
		  AND u.reset_token_hash = $1
		  AND u.reset_expires > $3
		RETURNING u.id::text, (prev.failed_login_attempts > 0 OR prev.account_locked_until IS NOT NULL)
	`

	var id string
	var lockoutCleared bool
	if err := r.pool.QueryRow(ctx, query, tokenHash, passwordHash, now).Scan(&id, &lockoutCleared); err != nil {
		return "", false, database.MapPostgresError(err)
	}

	return id, lockoutCleared, nil
}

// UpdatePassword sets a new password hash and revokes any outstanding reset
// token. It reports whether a reset token was revoked.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (bool, error) {
	query := `
		UPDATE users u
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires = NULL,
		    password_changed_at = $3,
		    updated_at = $3
		FROM users prev
		WHERE prev.id = u.id AND u.id = $1
		RETURNING prev.reset_token_hash IS NOT NULL
	`

	var revoked bool
	if err := r.pool.QueryRow(ctx, query, id, passwordHash, at).Scan(&revoked); err != nil {
		return false, database.MapPostgresError(err)
	}

	return revoked, nil
}

// ClearExpiredResetTokens nulls both reset columns for tokens expired at now
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET reset_token_hash = NULL, reset_expires = NULL
		WHERE reset_expires IS NOT NULL AND reset_expires <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
