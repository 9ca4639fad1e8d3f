package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	for i := 0; i < 3; i++ {
		w := doRequest(h, "192.0.2.10:4000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := doRequest(h, "192.0.2.10:4000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"error":"rate_limit_exceeded"`)
}

func TestRateLimitByIP_IsolatesClients(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "192.0.2.20:4000", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "192.0.2.20:4001", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "192.0.2.21:4000", nil).Code)
}

func TestRateLimitByIP_IgnoresSpoofedForwardingHeaders(t *testing.T) {
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "192.0.2.30:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
	// A different forged header from the same untrusted peer shares the bucket
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "192.0.2.30:4000", map[string]string{"X-Forwarded-For": "198.51.100.2"}).Code)
}

func TestRateLimitByIP_TrustedProxyKeysOnForwardedClient(t *testing.T) {
	ipConfig, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	h := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1, IPConfig: ipConfig})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "198.51.100.2"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}).Code)
}

func TestDefaultAuthRateLimit(t *testing.T) {
	assert.Equal(t, 10, DefaultAuthRateLimit().RequestsPerMinute)
}
