package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecurityEvent_TypeFollowsDetails(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := at.Add(15 * time.Minute)

	event := NewSecurityEvent("user-1", RequestMeta{IPAddress: "10.0.0.1"}, AccountLockedDetails{FailedAttempts: 5, LockedUntil: until}, at)

	assert.Equal(t, EventAccountLocked, event.Type)
	require.NotNil(t, event.AccountID)
	assert.Equal(t, "user-1", *event.AccountID)
	require.NotNil(t, event.IPAddress)
	assert.Equal(t, "10.0.0.1", *event.IPAddress)
	assert.Nil(t, event.UserAgent)
	assert.Equal(t, at, event.Timestamp)
}

func TestNewSecurityEvent_OmitsEmptyAccount(t *testing.T) {
	event := NewSecurityEvent("", RequestMeta{}, FailedLoginDetails{FailedAttempts: 1}, time.Now())

	assert.Nil(t, event.AccountID)
	assert.Nil(t, event.IPAddress)
}

func TestDecodeEventDetails_RoundTripsEachVariant(t *testing.T) {
	until := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	variants := []EventDetails{
		FailedLoginDetails{FailedAttempts: 3},
		SuccessfulLoginDetails{PreviousFailedAttempts: 2},
		AccountLockedDetails{FailedAttempts: 5, LockedUntil: until},
		LockoutClearedDetails{Reason: "password_reset"},
		PasswordResetRequestedDetails{ExpiresAt: until},
		PasswordResetCompletedDetails{LockoutCleared: true},
		PasswordChangedDetails{PendingResetRevoked: true},
	}

	for _, original := range variants {
		t.Run(string(original.EventType()), func(t *testing.T) {
			raw, err := json.Marshal(original)
			require.NoError(t, err)

			decoded, err := DecodeEventDetails(original.EventType(), raw)
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		})
	}
}

func TestDecodeEventDetails_UnknownType(t *testing.T) {
	_, err := DecodeEventDetails("SOMETHING_ELSE", []byte(`{}`))
	assert.Error(t, err)
}

func TestLockedError_UnwrapsToSentinel(t *testing.T) {
	var err error = &LockedError{Until: time.Now().Add(time.Minute), RemainingTime: time.Minute}

	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Contains(t, err.Error(), "1m0s")
}

func TestWeakPasswordError_ListsRules(t *testing.T) {
	var err error = &WeakPasswordError{Errors: []string{"too short", "needs a digit"}}

	assert.ErrorIs(t, err, ErrWeakPassword)
	assert.Equal(t, "weak password: too short; needs a digit", err.Error())
}

func TestUser_IsLockedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)
	u := &User{AccountLockedUntil: &until}

	assert.True(t, u.IsLockedAt(now))
	assert.False(t, u.IsLockedAt(until))
	assert.False(t, (&User{}).IsLockedAt(now))
}
