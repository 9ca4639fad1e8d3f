package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		wantValid bool
		wantScore int
	}{
		{
			name:      "common password is rejected",
			password:  "password",
			wantValid: false,
			wantScore: 0,
		},
		{
			name:      "all criteria met",
			password:  "Tr0ub4dor&3X!",
			wantValid: true,
			wantScore: 5,
		},
		{
			name:      "missing special character still passes with four points",
			password:  "SecurePass123",
			wantValid: true,
			wantScore: 4,
		},
		{
			name:      "missing two criteria",
			password:  "securepass",
			wantValid: false,
			wantScore: 2,
		},
		{
			name:      "short but varied",
			password:  "Ab1!",
			wantValid: false,
			wantScore: 4,
		},
		{
			name:      "denylist substring case-insensitive",
			password:  "MyQWERTY#2026",
			wantValid: false,
			wantScore: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateStrength(tt.password, DefaultMinPasswordLen)
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantScore, result.Score)
		})
	}
}

func TestValidateStrength_EmptyPassword(t *testing.T) {
	result := ValidateStrength("", DefaultMinPasswordLen)

	assert.False(t, result.IsValid)
	assert.Equal(t, 0, result.Score)
	assert.Contains(t, result.Errors, "must be at least 8 characters")
	assert.Contains(t, result.Errors, "must contain at least one uppercase letter")
	assert.Contains(t, result.Errors, "must contain at least one lowercase letter")
	assert.Contains(t, result.Errors, "must contain at least one digit")
	assert.Contains(t, result.Errors, "must contain at least one special character")
	assert.NotEmpty(t, result.Feedback)
}

func TestValidateStrength_ScoreNeverNegative(t *testing.T) {
	result := ValidateStrength("123456", DefaultMinPasswordLen)

	assert.Equal(t, 0, result.Score)
	assert.False(t, result.IsValid)
}

func TestValidateStrength_CustomMinLength(t *testing.T) {
	result := ValidateStrength("Tr0ub4d&X!", 12)

	assert.False(t, result.IsValid)
	assert.Equal(t, 4, result.Score)
	assert.Contains(t, result.Errors, "must be at least 12 characters")
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Tr0ub4dor&3X!", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "Tr0ub4dor&3X!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestGenerateResetToken_Format(t *testing.T) {
	token, err := GenerateResetToken(nil)
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.Equal(t, strings.ToLower(token), token)

	other, err := GenerateResetToken(nil)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateResetToken_DeterministicSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xab}, ResetTokenBytes))

	token, err := GenerateResetToken(src)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", ResetTokenBytes), token)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestGenerateResetToken_SourceFailure(t *testing.T) {
	_, err := GenerateResetToken(failingReader{})
	assert.Error(t, err)
}

func TestHashResetToken(t *testing.T) {
	a := HashResetToken("token-a")

	assert.Len(t, a, 64)
	assert.Equal(t, a, HashResetToken("token-a"))
	assert.NotEqual(t, a, HashResetToken("token-b"))
}

func TestDummyHash_MatchesConfiguredCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1, 6} {
		real, err := HashPassword("Tr0ub4dor&3X!", cost)
		require.NoError(t, err)

		realCost, err := bcrypt.Cost([]byte(real))
		require.NoError(t, err)
		dummyCost, err := bcrypt.Cost(DummyHash(cost))
		require.NoError(t, err)

		assert.Equal(t, cost, dummyCost, "cost %d", cost)
		assert.Equal(t, realCost, dummyCost, "cost %d", cost)
	}
}

func TestDummyHash_CachedPerCost(t *testing.T) {
	first := DummyHash(bcrypt.MinCost)
	second := DummyHash(bcrypt.MinCost)
	assert.Equal(t, first, second)

	other, err := bcrypt.Cost(DummyHash(bcrypt.MinCost + 1))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, other)
}

func TestDummyHash_OutOfRangeCostUsesDefault(t *testing.T) {
	cost, err := bcrypt.Cost(DummyHash(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultBcryptCost, cost)
}

func TestCompareDummy_NeverMatchesUserInput(t *testing.T) {
	assert.Error(t, bcrypt.CompareHashAndPassword(DummyHash(bcrypt.MinCost), []byte("Tr0ub4dor&3X!")))
	assert.NotPanics(t, func() { CompareDummy("anything", bcrypt.MinCost) })
}
