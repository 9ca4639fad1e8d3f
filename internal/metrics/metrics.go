// Package metrics exposes Prometheus counters for login, lockout and reset outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services use to count security outcomes
type Recorder interface {
	RecordLoginFailure()
	RecordLoginSuccess()
	RecordLockedRejection()
	RecordAccountLocked()
	RecordResetRequested()
	RecordResetCompleted()
	RecordInvalidResetToken()
	RecordSecurityEventDropped()
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	loginAttempts       *prometheus.CounterVec
	accountsLocked      prometheus.Counter
	resetsRequested     prometheus.Counter
	resetsCompleted     prometheus.Counter
	invalidResetTokens  prometheus.Counter
	securityEventsDrops prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		accountsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_accounts_locked_total",
			Help: "Lockouts applied after reaching the failure threshold",
		}),
		resetsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_password_resets_requested_total",
			Help: "Reset tokens issued",
		}),
		resetsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_password_resets_completed_total",
			Help: "Reset tokens consumed by a password change",
		}),
		invalidResetTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_invalid_reset_tokens_total",
			Help: "Reset tokens rejected as unknown or expired",
		}),
		securityEventsDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_security_events_dropped_total",
			Help: "Security events that could not be persisted",
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.accountsLocked,
		c.resetsRequested,
		c.resetsCompleted,
		c.invalidResetTokens,
		c.securityEventsDrops,
	)

	return c
}

func (c *Collector) RecordLoginFailure() {
	c.loginAttempts.WithLabelValues("failure").Inc()
}

func (c *Collector) RecordLoginSuccess() {
	c.loginAttempts.WithLabelValues("success").Inc()
}

// RecordLockedRejection counts attempts refused because the account was locked
func (c *Collector) RecordLockedRejection() {
	c.loginAttempts.WithLabelValues("locked").Inc()
}

func (c *Collector) RecordAccountLocked() {
	c.accountsLocked.Inc()
}

func (c *Collector) RecordResetRequested() {
	c.resetsRequested.Inc()
}

func (c *Collector) RecordResetCompleted() {
	c.resetsCompleted.Inc()
}

func (c *Collector) RecordInvalidResetToken() {
	c.invalidResetTokens.Inc()
}

func (c *Collector) RecordSecurityEventDropped() {
	c.securityEventsDrops.Inc()
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordLoginFailure()         {}
func (Nop) RecordLoginSuccess()         {}
func (Nop) RecordLockedRejection()      {}
func (Nop) RecordAccountLocked()        {}
func (Nop) RecordResetRequested()       {}
func (Nop) RecordResetCompleted()       {}
func (Nop) RecordInvalidResetToken()    {}
func (Nop) RecordSecurityEventDropped() {}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
