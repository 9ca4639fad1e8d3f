package services

import (
	"context"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// UserRepository is the account store the lockout, reset and auth flows share.
// Lookups return models.ErrNotFound for unknown accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)

	IncrementFailedLogins(ctx context.Context, email string, at time.Time) (string, int, error)
	LockAccount(ctx context.Context, id string, threshold int, now, until time.Time) (bool, error)
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) (int, error)
	ClearFailedLogins(ctx context.Context, id string, at time.Time) error

	SetResetToken(ctx context.Context, id, tokenHash string, expires, at time.Time) error
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (bool, error)
}

// SecurityEventRepository persists security events
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error)
}

// SecurityEventAppender accepts events without blocking or failing the caller
type SecurityEventAppender interface {
	Append(ctx context.Context, event *models.SecurityEvent)
}
