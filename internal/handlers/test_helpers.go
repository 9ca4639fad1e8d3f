package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	"github.com/stretchr/testify/require"
)

// MockAuthService is a function-field mock of AuthServiceInterface
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password string, meta models.RequestMeta) (*services.AuthResponse, error)
	RegisterFunc       func(ctx context.Context, email, password, name string) (*models.User, error)
	ChangePasswordFunc func(ctx context.Context, accountID, currentPassword, newPassword string, meta models.RequestMeta) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta models.RequestMeta) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, meta)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name)
	}
	return &models.User{ID: "user-1", Email: email, Name: name}, nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta models.RequestMeta) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, accountID, currentPassword, newPassword, meta)
	}
	return nil
}

// MockPasswordResetService is a function-field mock of PasswordResetServiceInterface
type MockPasswordResetService struct {
	RequestPasswordResetFunc       func(ctx context.Context, email string, meta models.RequestMeta) error
	ValidatePasswordResetTokenFunc func(ctx context.Context, token string) (string, error)
	ResetPasswordFunc              func(ctx context.Context, token, newPassword string, meta models.RequestMeta) error
}

func (m *MockPasswordResetService) RequestPasswordReset(ctx context.Context, email string, meta models.RequestMeta) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email, meta)
	}
	return nil
}

func (m *MockPasswordResetService) ValidatePasswordResetToken(ctx context.Context, token string) (string, error) {
	if m.ValidatePasswordResetTokenFunc != nil {
		return m.ValidatePasswordResetTokenFunc(ctx, token)
	}
	return "", models.ErrInvalidResetToken
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword, meta)
	}
	return nil
}

// MockSecurityEventReader is a function-field mock of SecurityEventReader
type MockSecurityEventReader struct {
	ListForAccountFunc func(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error)
}

func (m *MockSecurityEventReader) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.ListForAccountFunc != nil {
		return m.ListForAccountFunc(ctx, accountID, limit, offset)
	}
	return nil, nil
}

// NewTestRequest creates an HTTP request with a JSON body
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds token claims to the request context the way the auth middleware does
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		Type:   "access",
		UserID: userID,
		Email:  email,
	}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// DecodeJSONResponse decodes a recorded response body into v
func DecodeJSONResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
