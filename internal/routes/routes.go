package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	users auth.UserRepository,
	rateLimitConfig middleware.RateLimitConfig,
	health http.HandlerFunc,
	metrics http.Handler,
	logger *slog.Logger,
) {
	router.Get("/health", health)
	router.Method(http.MethodGet, "/metrics", metrics)

	// Public routes - rate limited per client IP
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/password/forgot", authHandler.ForgotPassword)
		r.Post("/auth/password/validate", authHandler.ValidateResetToken)
		r.Post("/auth/password/reset", authHandler.ResetPassword)
		r.Post("/auth/password/strength", authHandler.PasswordStrength)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager, users, logger))

		r.Post("/auth/password/change", authHandler.ChangePassword)
		r.Get("/auth/security-events", authHandler.SecurityEvents)
	})
}
