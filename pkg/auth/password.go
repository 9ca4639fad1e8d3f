package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost     = 12
	ResetTokenBytes       = 32 // 64 hex characters
	DefaultMinPasswordLen = 8
	MaxStrengthScore      = 5
	denylistPenalty       = 2
)

// Common passwords and fragments; matched case-insensitively as substrings
var commonPasswordFragments = []string{
	"password",
	"passw0rd",
	"123456",
	"111111",
	"qwerty",
	"abc123",
	"letmein",
	"welcome",
	"admin",
	"monkey",
	"dragon",
	"master",
	"iloveyou",
	"sunshine",
	"princess",
	"football",
	"baseball",
	"shadow",
	"trustno1",
}

// StrengthResult is the outcome of scoring a candidate password
type StrengthResult struct {
	IsValid  bool     `json:"is_valid"`
	Score    int      `json:"score"`
	Errors   []string `json:"errors"`
	Feedback []string `json:"feedback"`
}

// ValidateStrength scores a password from 0 to 5. One point each for length,
// uppercase, lowercase, digit and special character; a denylist hit costs two.
func ValidateStrength(password string, minLength int) StrengthResult {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLen
	}

	result := StrengthResult{
		Errors:   make([]string, 0),
		Feedback: make([]string, 0),
	}

	length := utf8.RuneCountInString(password)
	if length >= minLength {
		result.Score++
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("must be at least %d characters", minLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if hasUpper {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain at least one uppercase letter")
		result.Feedback = append(result.Feedback, "Add an uppercase letter")
	}
	if hasLower {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain at least one lowercase letter")
		result.Feedback = append(result.Feedback, "Add a lowercase letter")
	}
	if hasDigit {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain at least one digit")
		result.Feedback = append(result.Feedback, "Add a number")
	}
	if hasSpecial {
		result.Score++
	} else {
		result.Errors = append(result.Errors, "must contain at least one special character")
		result.Feedback = append(result.Feedback, "Add a symbol such as ! @ # or &")
	}

	if containsCommonPassword(password) {
		result.Score -= denylistPenalty
		if result.Score < 0 {
			result.Score = 0
		}
		result.Errors = append(result.Errors, "must not contain a common password")
		result.Feedback = append(result.Feedback, "Avoid common words and sequences")
	}

	if length < minLength+4 {
		result.Feedback = append(result.Feedback, "Longer passwords are harder to guess")
	}

	result.IsValid = result.Score >= 4 && length >= minLength
	return result
}

func containsCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	for _, fragment := range commonPasswordFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// HashPassword hashes a password with bcrypt at the given cost
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// dummyHashes caches one throwaway hash per bcrypt cost
var dummyHashes sync.Map

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return DefaultBcryptCost
	}
	return cost
}

// DummyHash returns the throwaway hash CompareDummy checks against at cost
func DummyHash(cost int) []byte {
	cost = normalizeCost(cost)
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, _ := bcrypt.GenerateFromPassword([]byte("sentinel-timing-equalizer"), cost)
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

// CompareDummy spends the same work as ComparePassword against a hash of the
// same cost. Used when there is no account so the response time does not reveal that.
func CompareDummy(password string, cost int) {
	_ = bcrypt.CompareHashAndPassword(DummyHash(cost), []byte(password))
}

// GenerateResetToken returns 32 random bytes from r, hex-encoded
func GenerateResetToken(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashResetToken returns the SHA-256 hex digest stored in place of a reset token
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
