package services

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/sentinel/internal/clock"
	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
)

const strongPassword = "Tr0ub4dor&3X!"

type resetFixture struct {
	store   *InMemoryUserStore
	events  *RecordingEventLog
	email   *MockEmailService
	clock   *clock.Fake
	service *PasswordResetService
	user    *models.User
}

func testResetConfig() ResetConfig {
	cfg := DefaultResetConfig()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func newResetFixture(t *testing.T, cfg ResetConfig) *resetFixture {
	t.Helper()
	f := &resetFixture{
		store:  NewInMemoryUserStore(),
		events: &RecordingEventLog{},
		email:  &MockEmailService{},
		clock:  clock.NewFake(testStart),
	}
	f.service = NewPasswordResetService(f.store, f.events, f.email, cfg, f.clock, nil, discardLogger())
	f.user = f.store.Put(NewTestUser("bob@example.com", "old-hash"))
	return f
}

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestPasswordResetService_CreateToken(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), "BOB@example.com")
	require.NoError(t, err)
	assert.Regexp(t, hexToken, token)

	stored := f.store.Get(f.user.ID)
	assert.Equal(t, pkgauth.HashResetToken(token), stored.ResetTokenHash)
	assert.NotContains(t, stored.ResetTokenHash, token)
	require.NotNil(t, stored.ResetExpires)
	assert.Equal(t, testStart.Add(time.Hour), *stored.ResetExpires)

	requested := f.events.OfType(models.EventPasswordResetRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, models.PasswordResetRequestedDetails{ExpiresAt: testStart.Add(time.Hour)}, requested[0].Details)
}

func TestPasswordResetService_CreateToken_UsesInjectedRandom(t *testing.T) {
	cfg := testResetConfig()
	cfg.Random = bytes.NewReader(bytes.Repeat([]byte{0xab}, 32))
	f := newResetFixture(t, cfg)

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), token)
}

func TestPasswordResetService_CreateToken_RandomFailure(t *testing.T) {
	cfg := testResetConfig()
	cfg.Random = iotest.ErrReader(errors.New("entropy exhausted"))
	f := newResetFixture(t, cfg)

	_, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	assert.Error(t, err)
	assert.Empty(t, f.store.Get(f.user.ID).ResetTokenHash)
}

func TestPasswordResetService_CreateToken_UnknownAccount(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, f.events.Events())
}

func TestPasswordResetService_CreateToken_StoreFailure(t *testing.T) {
	f := newResetFixture(t, testResetConfig())
	storeErr := errors.New("disk full")
	repo := &MockUserRepository{
		UserRepository: f.store,
		SetResetTokenFunc: func(ctx context.Context, id, tokenHash string, expires, at time.Time) error {
			return storeErr
		},
	}
	service := NewPasswordResetService(repo, f.events, f.email, testResetConfig(), f.clock, nil, discardLogger())

	_, err := service.CreatePasswordResetToken(context.Background(), f.user.Email)
	assert.ErrorIs(t, err, storeErr)
	assert.Empty(t, f.events.Events())
}

func TestPasswordResetService_NewTokenReplacesOld(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	first, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	second, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = f.service.ValidatePasswordResetToken(context.Background(), first)
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)

	id, err := f.service.ValidatePasswordResetToken(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id)
}

func TestPasswordResetService_ValidateRoundTripAndExpiry(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)

	id, err := f.service.ValidatePasswordResetToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id)

	// Validation has no side effects
	id, err = f.service.ValidatePasswordResetToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id)

	f.clock.Advance(time.Hour - time.Second)
	_, err = f.service.ValidatePasswordResetToken(context.Background(), token)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.service.ValidatePasswordResetToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)
}

func TestPasswordResetService_ValidateUnknownAndExpiredLookAlike(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	_, expiredErr := f.service.ValidatePasswordResetToken(context.Background(), token)
	_, unknownErr := f.service.ValidatePasswordResetToken(context.Background(), strings.Repeat("0", 64))
	_, emptyErr := f.service.ValidatePasswordResetToken(context.Background(), "")

	assert.Equal(t, expiredErr, unknownErr)
	assert.Equal(t, expiredErr, emptyErr)
	assert.ErrorIs(t, expiredErr, models.ErrInvalidResetToken)
}

func TestPasswordResetService_ValidateIsExactMatch(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)

	for _, variant := range []string{strings.ToUpper(token), token[:63], token + "0", " " + token} {
		_, err := f.service.ValidatePasswordResetToken(context.Background(), variant)
		assert.ErrorIs(t, err, models.ErrInvalidResetToken, variant)
	}
}

func TestPasswordResetService_ResetPassword(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	// Lock the account first; a reset must lift it
	until := testStart.Add(15 * time.Minute)
	stored := f.store.Get(f.user.ID)
	stored.FailedLoginAttempts = 3
	stored.AccountLockedUntil = &until
	f.store.Put(stored)

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)

	meta := models.RequestMeta{IPAddress: "198.51.100.4", UserAgent: "browser"}
	require.NoError(t, f.service.ResetPassword(context.Background(), token, strongPassword, meta))

	after := f.store.Get(f.user.ID)
	assert.NoError(t, pkgauth.ComparePassword(after.PasswordHash, strongPassword))
	assert.Empty(t, after.ResetTokenHash)
	assert.Nil(t, after.ResetExpires)
	assert.Zero(t, after.FailedLoginAttempts)
	assert.Nil(t, after.AccountLockedUntil)
	require.NotNil(t, after.PasswordChangedAt)

	completed := f.events.OfType(models.EventPasswordResetCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, models.PasswordResetCompletedDetails{LockoutCleared: true}, completed[0].Details)
	assert.Equal(t, "browser", *completed[0].UserAgent)
}

func TestPasswordResetService_TokenIsSingleUse(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	require.NoError(t, f.service.ResetPassword(context.Background(), token, strongPassword, models.RequestMeta{}))

	_, err = f.service.ValidatePasswordResetToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)

	err = f.service.ResetPassword(context.Background(), token, "An0ther!Secret", models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)
	assert.NoError(t, pkgauth.ComparePassword(f.store.Get(f.user.ID).PasswordHash, strongPassword))
}

func TestPasswordResetService_ResetPassword_Expired(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	err = f.service.ResetPassword(context.Background(), token, strongPassword, models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidResetToken)
	assert.Equal(t, "old-hash", f.store.Get(f.user.ID).PasswordHash)
}

func TestPasswordResetService_ResetPassword_WeakPassword(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	token, err := f.service.CreatePasswordResetToken(context.Background(), f.user.Email)
	require.NoError(t, err)

	err = f.service.ResetPassword(context.Background(), token, "password", models.RequestMeta{})

	var weak *models.WeakPasswordError
	require.ErrorAs(t, err, &weak)
	assert.ErrorIs(t, err, models.ErrWeakPassword)
	assert.Contains(t, weak.Errors, "must not contain a common password")

	// Token survives a rejected attempt
	_, err = f.service.ValidatePasswordResetToken(context.Background(), token)
	assert.NoError(t, err)
}

func TestPasswordResetService_ResetPassword_StoreFailure(t *testing.T) {
	f := newResetFixture(t, testResetConfig())
	storeErr := errors.New("deadlock detected")
	repo := &MockUserRepository{
		UserRepository: f.store,
		ConsumeResetTokenFunc: func(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error) {
			return "", false, storeErr
		},
	}
	service := NewPasswordResetService(repo, f.events, f.email, testResetConfig(), f.clock, nil, discardLogger())

	err := service.ResetPassword(context.Background(), strings.Repeat("a", 64), strongPassword, models.RequestMeta{})
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, models.ErrInvalidResetToken)
}

func TestPasswordResetService_RequestPasswordReset_SendsEmail(t *testing.T) {
	f := newResetFixture(t, testResetConfig())

	err := f.service.RequestPasswordReset(context.Background(), f.user.Email, models.RequestMeta{IPAddress: "192.0.2.1"})
	require.NoError(t, err)

	require.Len(t, f.email.Sent, 1)
	sent := f.email.Sent[0]
	assert.Equal(t, "bob@example.com", sent.To)
	assert.Equal(t, testStart.Add(time.Hour), sent.ExpiresAt)

	id, err := f.service.ValidatePasswordResetToken(context.Background(), sent.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id)

	requested := f.events.OfType(models.EventPasswordResetRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, "192.0.2.1", *requested[0].IPAddress)
}

func TestPasswordResetService_RequestPasswordReset_UnknownAndFailedDeliveryLookAlike(t *testing.T) {
	f := newResetFixture(t, testResetConfig())
	f.email.SendFunc = func(ctx context.Context, email, token string, expiresAt time.Time) error {
		return errors.New("ses throttled")
	}

	unknownErr := f.service.RequestPasswordReset(context.Background(), "nobody@example.com", models.RequestMeta{})
	failedErr := f.service.RequestPasswordReset(context.Background(), f.user.Email, models.RequestMeta{})

	assert.NoError(t, unknownErr)
	assert.NoError(t, failedErr)
	assert.Empty(t, f.email.Sent)
}

func TestPasswordResetService_RequestPasswordReset_NoSender(t *testing.T) {
	f := newResetFixture(t, testResetConfig())
	service := NewPasswordResetService(f.store, f.events, nil, testResetConfig(), f.clock, nil, discardLogger())

	require.NoError(t, service.RequestPasswordReset(context.Background(), f.user.Email, models.RequestMeta{}))
	assert.NotEmpty(t, f.store.Get(f.user.ID).ResetTokenHash)
}
