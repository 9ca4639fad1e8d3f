package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/services"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// AuthServiceInterface defines the login, registration and password change flows
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta models.RequestMeta) (*services.AuthResponse, error)
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string, meta models.RequestMeta) error
}

// PasswordResetServiceInterface defines the reset token flows
type PasswordResetServiceInterface interface {
	RequestPasswordReset(ctx context.Context, email string, meta models.RequestMeta) error
	ValidatePasswordResetToken(ctx context.Context, token string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error
}

// SecurityEventReader lists an account's security history
type SecurityEventReader interface {
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service           AuthServiceInterface
	resets            PasswordResetServiceInterface
	events            SecurityEventReader
	passwordMinLength int
	ipConfig          *pkghttp.IPConfig
	logger            *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, resets PasswordResetServiceInterface, events SecurityEventReader, passwordMinLength int, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:           service,
		resets:            resets,
		events:            events,
		passwordMinLength: passwordMinLength,
		ipConfig:          ipConfig,
		logger:            logger,
	}
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ResetTokenRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"new_password" validate:"required,max=256"`
}

type PasswordStrengthRequest struct {
	Password string `json:"password" validate:"max=256"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required,max=256"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

type ResetTokenStatusResponse struct {
	Valid bool `json:"valid"`
}

type SecurityEventsResponse struct {
	Events []*models.SecurityEvent `json:"events"`
}

const (
	registrationAccepted = "If the address can be registered, the account is ready. Sign in to continue."
	resetRequestAccepted = "If an account exists for that address, a reset link has been sent."
	invalidResetToken    = "Reset link is invalid or has expired"
)

// decodeAndValidate reads a JSON body into req and validates it, writing a
// 400 and returning false on failure
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

func (h *AuthHandler) requestMeta(r *http.Request) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// Register creates an account. Existing emails get the same 202 as new ones.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		var weak *models.WeakPasswordError
		switch {
		case errors.As(err, &weak):
			pkghttp.WriteWeakPassword(w, weak.Errors)
			return
		case errors.Is(err, models.ErrConflict):
			// fall through to the generic acceptance
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: registrationAccepted})
}

// Login authenticates credentials and returns an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, h.requestMeta(r))
	if err != nil {
		var locked *models.LockedError
		switch {
		case errors.As(err, &locked):
			pkghttp.WriteLocked(w, "Account temporarily locked due to too many failed login attempts", locked.RemainingTime)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword starts a reset. The response never reveals whether the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.resets.RequestPasswordReset(r.Context(), req.Email, h.requestMeta(r)); err != nil {
		h.logger.Error("password reset request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: resetRequestAccepted})
}

// ValidateResetToken lets a client check a link before showing the new-password form
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var req ResetTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.resets.ValidatePasswordResetToken(r.Context(), req.Token); err != nil {
		h.writeResetError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ResetTokenStatusResponse{Valid: true})
}

// ResetPassword consumes a reset token and sets the new password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword, h.requestMeta(r)); err != nil {
		h.writeResetError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset. Sign in with your new password."})
}

func (h *AuthHandler) writeResetError(w http.ResponseWriter, err error) {
	var weak *models.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		pkghttp.WriteWeakPassword(w, weak.Errors)
	case errors.Is(err, models.ErrInvalidResetToken):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_or_expired_token", invalidResetToken)
	default:
		h.logger.Error("password reset failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// PasswordStrength scores a candidate password without storing anything
func (h *AuthHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req PasswordStrengthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, pkgauth.ValidateStrength(req.Password, h.passwordMinLength))
}

// ChangePassword replaces the signed-in user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, h.requestMeta(r))
	if err != nil {
		var weak *models.WeakPasswordError
		var locked *models.LockedError
		switch {
		case errors.As(err, &locked):
			pkghttp.WriteLocked(w, "Account temporarily locked due to too many failed attempts", locked.RemainingTime)
		case errors.As(err, &weak):
			pkghttp.WriteWeakPassword(w, weak.Errors)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_current_password", "Current password is incorrect")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		default:
			h.logger.Error("password change failed", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed"})
}

// SecurityEvents lists the signed-in user's own security history
func (h *AuthHandler) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	events, err := h.events.ListForAccount(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list security events", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if events == nil {
		events = []*models.SecurityEvent{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, SecurityEventsResponse{Events: events})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}
