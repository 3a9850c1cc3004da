// Package metrics holds the Prometheus collectors for authentication
// outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginLocked             = "locked"
	LoginError              = "error"
)

// Refresh outcomes.
const (
	RefreshSuccess = "success"
	RefreshInvalid = "invalid"
	RefreshError   = "error"
)

// Revocation reasons.
const (
	RevokeLogout    = "logout"
	RevokeLogoutAll = "logout_all"
	RevokeByID      = "by_id"
)

// Metrics is the set of auth collectors registered on one registry.
type Metrics struct {
	LoginsTotal          *prometheus.CounterVec
	LockoutsTotal        prometheus.Counter
	RegistrationsTotal   prometheus.Counter
	RefreshTotal         *prometheus.CounterVec
	SessionsRevokedTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		LockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gophauth_lockouts_total",
				Help: "Total number of accounts locked after repeated failures",
			},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gophauth_registrations_total",
				Help: "Total number of registered accounts",
			},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_refresh_total",
				Help: "Total number of refresh token rotations by outcome",
			},
			[]string{"outcome"},
		),
		SessionsRevokedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_sessions_revoked_total",
				Help: "Total number of revoked sessions by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		m.LoginsTotal,
		m.LockoutsTotal,
		m.RegistrationsTotal,
		m.RefreshTotal,
		m.SessionsRevokedTotal,
	)

	return m
}

// Login records a login attempt.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// Lockout records an account entering the locked state.
func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.LockoutsTotal.Inc()
}

// Registration records a new account.
func (m *Metrics) Registration() {
	if m == nil {
		return
	}
	m.RegistrationsTotal.Inc()
}

// Refresh records a rotation attempt.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

// SessionsRevoked records n sessions revoked for reason.
func (m *Metrics) SessionsRevoked(reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsRevokedTotal.WithLabelValues(reason).Add(float64(n))
}

// Handler returns the scrape handler for registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
