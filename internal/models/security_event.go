package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of security event
type EventType string

// Security event types
const (
	EventFailedLogin            EventType = "FAILED_LOGIN"
	EventSuccessfulLogin        EventType = "SUCCESSFUL_LOGIN"
	EventAccountLocked          EventType = "ACCOUNT_LOCKED"
	EventLockoutCleared         EventType = "LOCKOUT_CLEARED"
	EventPasswordResetRequested EventType = "PASSWORD_RESET_REQUESTED"
	EventPasswordResetCompleted EventType = "PASSWORD_RESET_COMPLETED"
	EventPasswordChanged        EventType = "PASSWORD_CHANGED"
)

// EventDetails is the type-specific payload of a security event.
// Each implementation belongs to exactly one EventType.
type EventDetails interface {
	EventType() EventType
}

// FailedLoginDetails accompanies FAILED_LOGIN
type FailedLoginDetails struct {
	FailedAttempts int `json:"failed_attempts"`
}

func (FailedLoginDetails) EventType() EventType { return EventFailedLogin }

// SuccessfulLoginDetails accompanies SUCCESSFUL_LOGIN
type SuccessfulLoginDetails struct {
	PreviousFailedAttempts int `json:"previous_failed_attempts"`
}

func (SuccessfulLoginDetails) EventType() EventType { return EventSuccessfulLogin }

// AccountLockedDetails accompanies ACCOUNT_LOCKED
type AccountLockedDetails struct {
	FailedAttempts int       `json:"failed_attempts"`
	LockedUntil    time.Time `json:"locked_until"`
}

func (AccountLockedDetails) EventType() EventType { return EventAccountLocked }

// LockoutClearedDetails accompanies LOCKOUT_CLEARED
type LockoutClearedDetails struct {
	Reason string `json:"reason"`
}

func (LockoutClearedDetails) EventType() EventType { return EventLockoutCleared }

// PasswordResetRequestedDetails accompanies PASSWORD_RESET_REQUESTED
type PasswordResetRequestedDetails struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (PasswordResetRequestedDetails) EventType() EventType { return EventPasswordResetRequested }

// PasswordResetCompletedDetails accompanies PASSWORD_RESET_COMPLETED
type PasswordResetCompletedDetails struct {
	LockoutCleared bool `json:"lockout_cleared"`
}

func (PasswordResetCompletedDetails) EventType() EventType { return EventPasswordResetCompleted }

// PasswordChangedDetails accompanies PASSWORD_CHANGED
type PasswordChangedDetails struct {
	PendingResetRevoked bool `json:"pending_reset_revoked"`
}

func (PasswordChangedDetails) EventType() EventType { return EventPasswordChanged }

// SecurityEvent is an append-only record of a security-relevant action
type SecurityEvent struct {
	ID        uuid.UUID    `json:"id"`
	Type      EventType    `json:"type"`
	AccountID *string      `json:"account_id,omitempty"`
	IPAddress *string      `json:"ip_address,omitempty"`
	UserAgent *string      `json:"user_agent,omitempty"`
	Details   EventDetails `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewSecurityEvent builds an event whose type is taken from its details
func NewSecurityEvent(accountID string, meta RequestMeta, details EventDetails, at time.Time) *SecurityEvent {
	event := &SecurityEvent{
		ID:        uuid.New(),
		Type:      details.EventType(),
		Details:   details,
		Timestamp: at,
	}
	if accountID != "" {
		event.AccountID = &accountID
	}
	if meta.IPAddress != "" {
		ip := meta.IPAddress
		event.IPAddress = &ip
	}
	if meta.UserAgent != "" {
		ua := meta.UserAgent
		event.UserAgent = &ua
	}
	return event
}

// DecodeEventDetails unmarshals a stored details payload into the variant for eventType
func DecodeEventDetails(eventType EventType, raw []byte) (EventDetails, error) {
	var details EventDetails
	switch eventType {
	case EventFailedLogin:
		details = &FailedLoginDetails{}
	case EventSuccessfulLogin:
		details = &SuccessfulLoginDetails{}
	case EventAccountLocked:
		details = &AccountLockedDetails{}
	case EventLockoutCleared:
		details = &LockoutClearedDetails{}
	case EventPasswordResetRequested:
		details = &PasswordResetRequestedDetails{}
	case EventPasswordResetCompleted:
		details = &PasswordResetCompletedDetails{}
	case EventPasswordChanged:
		details = &PasswordChangedDetails{}
	default:
		return nil, fmt.Errorf("unknown security event type %q", eventType)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, details); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", eventType, err)
		}
	}

	return derefDetails(details), nil
}

// derefDetails returns the value form so decoded events compare equal to constructed ones
func derefDetails(d EventDetails) EventDetails {
	switch v := d.(type) {
	case *FailedLoginDetails:
		return *v
	case *SuccessfulLoginDetails:
		return *v
	case *AccountLockedDetails:
		return *v
	case *LockoutClearedDetails:
		return *v
	case *PasswordResetRequestedDetails:
		return *v
	case *PasswordResetCompletedDetails:
		return *v
	case *PasswordChangedDetails:
		return *v
	}
	return d
}
