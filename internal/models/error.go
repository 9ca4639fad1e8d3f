package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
)

// LockedError carries the lock expiry for a rejected login attempt.
// It does not say whether the lock was just applied or already active.
type LockedError struct {
	Until         time.Time
	RemainingTime time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked for %s", e.RemainingTime.Round(time.Second))
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// WeakPasswordError lists the strength rules a candidate password failed
type WeakPasswordError struct {
	Errors []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Errors) == 0 {
		return ErrWeakPassword.Error()
	}
	return "weak password: " + strings.Join(e.Errors, "; ")
}

func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}
