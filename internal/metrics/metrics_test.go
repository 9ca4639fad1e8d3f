package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_LoginOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure()
	c.RecordLoginFailure()
	c.RecordLoginSuccess()
	c.RecordLockedRejection()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.loginAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loginAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loginAttempts.WithLabelValues("locked")))
}

func TestCollector_LockoutAndReset(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccountLocked()
	c.RecordResetRequested()
	c.RecordResetRequested()
	c.RecordResetCompleted()
	c.RecordInvalidResetToken()
	c.RecordSecurityEventDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.accountsLocked))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.resetsRequested))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resetsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.invalidResetTokens))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.securityEventsDrops))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAccountLocked()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "sentinel_accounts_locked_total 1")
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordLoginFailure()
}
