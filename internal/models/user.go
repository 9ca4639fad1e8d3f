package models

import (
	"time"
)

// User is an account together with its security record
type User struct {
	ID                  string
	Email               string // Stored lower-cased
	Name                string
	PasswordHash        string // Empty for OAuth-only accounts
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LastLogin           *time.Time
	AccountLockedUntil  *time.Time // Locked while in the future
	ResetTokenHash      string     // SHA-256 hex of the outstanding reset token
	ResetExpires        *time.Time // Set and cleared together with ResetTokenHash
	PasswordChangedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLockedAt reports whether the account lock is still in effect at now
func (u *User) IsLockedAt(now time.Time) bool {
	return u.AccountLockedUntil != nil && now.Before(*u.AccountLockedUntil)
}

// HasPassword reports whether the account can authenticate with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasValidResetTokenAt reports whether a reset token is outstanding and unexpired
func (u *User) HasValidResetTokenAt(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetExpires != nil && now.Before(*u.ResetExpires)
}
