package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/clock"
	"github.com/BradenHooton/sentinel/internal/metrics"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// ResetConfig holds reset token and new-password policy
type ResetConfig struct {
	TokenTTL          time.Duration
	PasswordMinLength int
	BcryptCost        int
	Random            io.Reader // Token entropy source; nil uses crypto/rand
}

func DefaultResetConfig() ResetConfig {
	return ResetConfig{
		TokenTTL:          time.Hour,
		PasswordMinLength: pkgauth.DefaultMinPasswordLen,
		BcryptCost:        pkgauth.DefaultBcryptCost,
	}
}

// PasswordResetService issues, validates and consumes single-use reset tokens.
// Only the SHA-256 digest of a token is stored. Unknown and expired tokens are
// indistinguishable to callers.
type PasswordResetService struct {
	repo    UserRepository
	events  SecurityEventAppender
	email   EmailService
	metrics metrics.Recorder
	clock   clock.Clock
	config  ResetConfig
	logger  *slog.Logger
}

func NewPasswordResetService(repo UserRepository, events SecurityEventAppender, email EmailService, config ResetConfig, clk clock.Clock, recorder metrics.Recorder, logger *slog.Logger) *PasswordResetService {
	if clk == nil {
		clk = clock.System{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &PasswordResetService{
		repo:    repo,
		events:  events,
		email:   email,
		metrics: recorder,
		clock:   clk,
		config:  config,
		logger:  logger,
	}
}

type issuedToken struct {
	token     string
	user      *models.User
	expiresAt time.Time
}

// CreatePasswordResetToken issues a token for email, replacing any outstanding
// one. It returns "" and no error when no account matches; callers must
// respond the same way in both cases.
func (s *PasswordResetService) CreatePasswordResetToken(ctx context.Context, email string) (string, error) {
	issued, err := s.issue(ctx, email, models.RequestMeta{})
	if err != nil || issued == nil {
		return "", err
	}
	return issued.token, nil
}

func (s *PasswordResetService) issue(ctx context.Context, email string, meta models.RequestMeta) (*issuedToken, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up account for reset: %w", err)
	}

	token, err := pkgauth.GenerateResetToken(s.config.Random)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, pkgauth.HashResetToken(token), expiresAt, now); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	s.metrics.RecordResetRequested()
	s.events.Append(ctx, models.NewSecurityEvent(user.ID, meta, models.PasswordResetRequestedDetails{
		ExpiresAt: expiresAt,
	}, now))

	return &issuedToken{token: token, user: user, expiresAt: expiresAt}, nil
}

// ValidatePasswordResetToken returns the account id a live token belongs to,
// or models.ErrInvalidResetToken. It does not consume the token.
func (s *PasswordResetService) ValidatePasswordResetToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		s.metrics.RecordInvalidResetToken()
		return "", models.ErrInvalidResetToken
	}

	user, err := s.repo.GetByResetTokenHash(ctx, pkgauth.HashResetToken(token), s.clock.Now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.metrics.RecordInvalidResetToken()
			return "", models.ErrInvalidResetToken
		}
		return "", fmt.Errorf("validate reset token: %w", err)
	}

	return user.ID, nil
}

// ResetPassword consumes token and sets newPassword. The token pair and any
// lockout are cleared in the same write that changes the hash, so a token
// can be used at most once.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error {
	strength := pkgauth.ValidateStrength(newPassword, s.config.PasswordMinLength)
	if !strength.IsValid {
		return &models.WeakPasswordError{Errors: strength.Errors}
	}

	if token == "" {
		s.metrics.RecordInvalidResetToken()
		return models.ErrInvalidResetToken
	}

	hash, err := pkgauth.HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	accountID, lockoutCleared, err := s.repo.ConsumeResetToken(ctx, pkgauth.HashResetToken(token), hash, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.metrics.RecordInvalidResetToken()
			return models.ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	s.metrics.RecordResetCompleted()
	s.logger.Info("password reset completed", slog.String("user_id", accountID))
	s.events.Append(ctx, models.NewSecurityEvent(accountID, meta, models.PasswordResetCompletedDetails{
		LockoutCleared: lockoutCleared,
	}, now))

	return nil
}

// RequestPasswordReset issues a token and emails it. Unknown accounts and
// delivery failures both return nil; only store failures are reported.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, email string, meta models.RequestMeta) error {
	issued, err := s.issue(ctx, email, meta)
	if err != nil {
		return err
	}

	if issued == nil {
		s.logger.Info("password reset requested for unknown account", pkglogger.EmailAttr(email))
		return nil
	}

	if s.email == nil {
		s.logger.Warn("no email sender configured, reset token not delivered", slog.String("user_id", issued.user.ID))
		return nil
	}

	if err := s.email.SendPasswordResetEmail(ctx, issued.user.Email, issued.token, issued.expiresAt); err != nil {
		s.logger.Error("failed to deliver password reset email",
			slog.String("user_id", issued.user.ID),
			slog.Any("error", err),
		)
	}

	return nil
}
