package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/clock"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// PasswordPolicy is the strength and hashing policy for new passwords
type PasswordPolicy struct {
	MinLength  int
	BcryptCost int
}

// AuthService handles login, registration and password changes
type AuthService struct {
	repo    UserRepository
	lockout *LockoutService
	events  SecurityEventAppender
	tm      *auth.TokenManager
	timing  *auth.TimingDelay
	clock   clock.Clock
	policy  PasswordPolicy
	logger  *slog.Logger
}

func NewAuthService(repo UserRepository, lockout *LockoutService, events SecurityEventAppender, tm *auth.TokenManager, timing *auth.TimingDelay, policy PasswordPolicy, clk clock.Clock, logger *slog.Logger) *AuthService {
	if clk == nil {
		clk = clock.System{}
	}
	return &AuthService{
		repo:    repo,
		lockout: lockout,
		events:  events,
		tm:      tm,
		timing:  timing,
		clock:   clk,
		policy:  policy,
		logger:  logger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// AuthResponse is returned by a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        *UserResponse `json:"user"`
}

func toUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// Login authenticates email/password through the lockout guard and issues an
// access token. Failures return models.ErrInvalidCredentials or a
// *models.LockedError, padded to a common duration.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.RequestMeta) (*AuthResponse, error) {
	start := time.Now()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	user, err := s.lockout.AttemptLogin(ctx, email, meta, func(u *models.User) (bool, error) {
		if u == nil || !u.HasPassword() {
			pkgauth.CompareDummy(password, s.policy.BcryptCost)
			return false, nil
		}
		return pkgauth.ComparePassword(u.PasswordHash, password) == nil, nil
	})
	if err != nil {
		s.timing.WaitFrom(start, false)

		var locked *models.LockedError
		switch {
		case errors.As(err, &locked):
			s.logger.Info("login rejected: account locked", slog.Duration("remaining", locked.RemainingTime))
		case errors.Is(err, models.ErrInvalidCredentials):
			s.logger.Info("login failed: invalid credentials")
		default:
			s.logger.Error("login failed", slog.Any("error", err))
		}
		return nil, err
	}

	accessToken, expiresAt, err := s.tm.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.timing.WaitFrom(start, true)
	s.logger.Info("login succeeded", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        toUserResponse(user),
	}, nil
}

// Register creates an account with zeroed security counters
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	strength := pkgauth.ValidateStrength(password, s.policy.MinLength)
	if !strength.IsValid {
		return nil, &models.WeakPasswordError{Errors: strength.Errors}
	}

	hash, err := pkgauth.HashPassword(password, s.policy.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created, err := s.repo.Create(ctx, &models.User{
		Email:             normalizeEmail(email),
		Name:              name,
		PasswordHash:      hash,
		PasswordChangedAt: &now,
		CreatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration for existing email", pkglogger.EmailAttr(email))
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	return created, nil
}

// ChangePassword replaces the password of a signed-in account after checking
// the current one. The check runs behind the lockout guard: a locked account
// gets *models.LockedError and a wrong current password counts as a failed
// login. On success any pending reset token is revoked and the lockout cleared.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta models.RequestMeta) error {
	user, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		return fmt.Errorf("load account: %w", err)
	}

	status, _, err := s.lockout.checkLockout(ctx, user.Email, meta)
	if err != nil {
		return err
	}
	if status.IsLocked {
		return &models.LockedError{Until: *status.LockoutEnd, RemainingTime: status.RemainingTime}
	}

	if !user.HasPassword() || pkgauth.ComparePassword(user.PasswordHash, currentPassword) != nil {
		// Wrong current passwords count toward the same lockout as failed logins
		if err := s.lockout.RecordFailedLogin(ctx, user.Email, meta); err != nil {
			return err
		}
		return models.ErrInvalidCredentials
	}

	strength := pkgauth.ValidateStrength(newPassword, s.policy.MinLength)
	if !strength.IsValid {
		return &models.WeakPasswordError{Errors: strength.Errors}
	}

	hash, err := pkgauth.HashPassword(newPassword, s.policy.BcryptCost)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	revoked, err := s.repo.UpdatePassword(ctx, user.ID, hash, now)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.lockout.ClearFailedLogins(ctx, user.ID, "password_changed"); err != nil {
		return err
	}

	s.events.Append(ctx, models.NewSecurityEvent(user.ID, meta, models.PasswordChangedDetails{
		PendingResetRevoked: revoked,
	}, now))

	return nil
}
