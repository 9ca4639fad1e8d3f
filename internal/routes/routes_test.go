package routes

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/clock"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/services"
)

func newTestRouter(t *testing.T, limit int) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm := auth.NewTokenManager("test-secret-0123456789abcdef", time.Hour, clock.NewFake(time.Now()))
	h := handlers.NewAuthHandler(&handlers.MockAuthService{}, &handlers.MockPasswordResetService{}, &handlers.MockSecurityEventReader{}, 8, nil, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, h, tm, services.NewInMemoryUserStore(),
		middleware.RateLimitConfig{RequestsPerMinute: limit},
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
		http.NotFoundHandler(),
		logger,
	)
	return router
}

func TestRegisterRoutes_ProtectedRoutesRequireBearer(t *testing.T) {
	router := newTestRouter(t, 100)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/auth/password/change"},
		{http.MethodGet, "/auth/security-events"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}

func TestRegisterRoutes_PublicRoutesAreRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/password/strength", strings.NewReader(`{"password":"x"}`))
		req.RemoteAddr = "192.0.2.50:1000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRegisterRoutes_HealthIsNotRateLimited(t *testing.T) {
	router := newTestRouter(t, 1)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
