package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/clock"
	"github.com/BradenHooton/sentinel/internal/metrics"
	"github.com/BradenHooton/sentinel/internal/models"
)

// LockoutConfig holds the failed-login threshold and lock length
type LockoutConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxLoginAttempts: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

// VerifyFunc checks credentials for the account being logged into. user is
// nil when no account matches the email; implementations should still spend
// comparable time so the response does not reveal that.
type VerifyFunc func(user *models.User) (bool, error)

// LockoutService tracks failed logins per account and enforces temporary locks.
//
// An account moves from open to locked on the first check that sees the
// failure count at or above MaxLoginAttempts. Applying the lock zeroes the
// counter, so once the lock expires the account starts over with a full set
// of attempts. An active lock is never extended.
type LockoutService struct {
	repo    UserRepository
	events  SecurityEventAppender
	metrics metrics.Recorder
	clock   clock.Clock
	config  LockoutConfig
	logger  *slog.Logger
}

func NewLockoutService(repo UserRepository, events SecurityEventAppender, config LockoutConfig, clk clock.Clock, recorder metrics.Recorder, logger *slog.Logger) *LockoutService {
	if clk == nil {
		clk = clock.System{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &LockoutService{
		repo:    repo,
		events:  events,
		metrics: recorder,
		clock:   clk,
		config:  config,
		logger:  logger,
	}
}

// CheckLockout reports whether a login for email may proceed, applying a new
// lock when the failure threshold has been reached. Unknown emails look like
// an open account with every attempt remaining.
func (s *LockoutService) CheckLockout(ctx context.Context, email string) (*models.LockoutStatus, error) {
	status, _, err := s.checkLockout(ctx, email, models.RequestMeta{})
	return status, err
}

func (s *LockoutService) checkLockout(ctx context.Context, email string, meta models.RequestMeta) (*models.LockoutStatus, *models.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.openStatus(0), nil, nil
		}
		return nil, nil, fmt.Errorf("check lockout: %w", err)
	}

	now := s.clock.Now()
	if user.IsLockedAt(now) {
		return lockedStatus(*user.AccountLockedUntil, now), user, nil
	}

	if user.FailedLoginAttempts < s.config.MaxLoginAttempts {
		return s.openStatus(user.FailedLoginAttempts), user, nil
	}

	until := now.Add(s.config.LockoutDuration)
	applied, err := s.repo.LockAccount(ctx, user.ID, s.config.MaxLoginAttempts, now, until)
	if err != nil {
		return nil, nil, fmt.Errorf("apply lockout: %w", err)
	}

	if !applied {
		// Another request got there first; report whatever it left behind
		fresh, err := s.repo.GetByID(ctx, user.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("reload account after lockout race: %w", err)
		}
		if fresh.IsLockedAt(now) {
			return lockedStatus(*fresh.AccountLockedUntil, now), fresh, nil
		}
		return s.openStatus(fresh.FailedLoginAttempts), fresh, nil
	}

	s.metrics.RecordAccountLocked()
	s.logger.Warn("account locked",
		slog.String("user_id", user.ID),
		slog.Int("failed_attempts", user.FailedLoginAttempts),
		slog.Time("locked_until", until),
	)
	s.events.Append(ctx, models.NewSecurityEvent(user.ID, meta, models.AccountLockedDetails{
		FailedAttempts: user.FailedLoginAttempts,
		LockedUntil:    until,
	}, now))

	user.AccountLockedUntil = &until
	user.FailedLoginAttempts = 0
	return lockedStatus(until, now), user, nil
}

// RecordFailedLogin counts a failed attempt against email. Unknown emails are
// ignored without error.
func (s *LockoutService) RecordFailedLogin(ctx context.Context, email string, meta models.RequestMeta) error {
	s.metrics.RecordLoginFailure()

	now := s.clock.Now()
	id, attempts, err := s.repo.IncrementFailedLogins(ctx, normalizeEmail(email), now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("record failed login: %w", err)
	}

	s.events.Append(ctx, models.NewSecurityEvent(id, meta, models.FailedLoginDetails{
		FailedAttempts: attempts,
	}, now))

	return nil
}

// RecordSuccessfulLogin resets the failure counter and any lock for accountID
func (s *LockoutService) RecordSuccessfulLogin(ctx context.Context, accountID string, meta models.RequestMeta) error {
	now := s.clock.Now()
	previous, err := s.repo.RecordSuccessfulLogin(ctx, accountID, now)
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}

	s.metrics.RecordLoginSuccess()
	s.events.Append(ctx, models.NewSecurityEvent(accountID, meta, models.SuccessfulLoginDetails{
		PreviousFailedAttempts: previous,
	}, now))

	return nil
}

// ClearFailedLogins resets the failure counter and lifts any lock
func (s *LockoutService) ClearFailedLogins(ctx context.Context, accountID, reason string) error {
	now := s.clock.Now()
	if err := s.repo.ClearFailedLogins(ctx, accountID, now); err != nil {
		return fmt.Errorf("clear failed logins: %w", err)
	}

	s.events.Append(ctx, models.NewSecurityEvent(accountID, models.RequestMeta{}, models.LockoutClearedDetails{
		Reason: reason,
	}, now))

	return nil
}

// AttemptLogin runs check, verify and record as one step. Locked accounts are
// rejected with *models.LockedError before verify runs. Failed verification
// returns models.ErrInvalidCredentials whether or not the account exists.
func (s *LockoutService) AttemptLogin(ctx context.Context, email string, meta models.RequestMeta, verify VerifyFunc) (*models.User, error) {
	status, user, err := s.checkLockout(ctx, email, meta)
	if err != nil {
		return nil, err
	}

	if status.IsLocked {
		s.metrics.RecordLockedRejection()
		return nil, &models.LockedError{Until: *status.LockoutEnd, RemainingTime: status.RemainingTime}
	}

	ok, err := verify(user)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if !ok || user == nil {
		if err := s.RecordFailedLogin(ctx, email, meta); err != nil {
			return nil, err
		}
		return nil, models.ErrInvalidCredentials
	}

	if err := s.RecordSuccessfulLogin(ctx, user.ID, meta); err != nil {
		return nil, err
	}

	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	return user, nil
}

func (s *LockoutService) openStatus(failedAttempts int) *models.LockoutStatus {
	return &models.LockoutStatus{
		IsLocked:          false,
		AttemptsRemaining: max(s.config.MaxLoginAttempts-failedAttempts, 0),
	}
}

func lockedStatus(until, now time.Time) *models.LockoutStatus {
	end := until
	return &models.LockoutStatus{
		IsLocked:          true,
		LockoutEnd:        &end,
		AttemptsRemaining: 0,
		RemainingTime:     until.Sub(now),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
