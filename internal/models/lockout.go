package models

import "time"

// LockoutStatus is the outcome of a lockout check for one login attempt
type LockoutStatus struct {
	IsLocked          bool          `json:"is_locked"`
	LockoutEnd        *time.Time    `json:"lockout_end,omitempty"`
	AttemptsRemaining int           `json:"attempts_remaining"`
	RemainingTime     time.Duration `json:"-"`
}

// RemainingTimeMs returns the remaining lock time in milliseconds
func (s *LockoutStatus) RemainingTimeMs() int64 {
	return s.RemainingTime.Milliseconds()
}

// RequestMeta describes where a security-relevant request came from
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
