package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T, target string, status int) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.40:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	entry := captureLog(t, "/reset-password?token=abcdef0123", http.StatusOK)

	assert.Equal(t, "/reset-password?[REDACTED]", entry["path"])
	assert.NotContains(t, entry["path"], "abcdef0123")
}

func TestSecureLogger_KeepsPlainQuery(t *testing.T) {
	entry := captureLog(t, "/auth/security-events?limit=10", http.StatusOK)

	assert.Equal(t, "/auth/security-events?limit=10", entry["path"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "192.0.2.40", entry["client_ip"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestSecureLogger_ServerErrorsLogAtError(t *testing.T) {
	entry := captureLog(t, "/auth/login", http.StatusInternalServerError)

	assert.Equal(t, "ERROR", entry["level"])
}
