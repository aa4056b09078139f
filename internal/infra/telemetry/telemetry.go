package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors exposed by the service.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginAttempts   *prometheus.CounterVec
	AccountLockouts prometheus.Counter
	TokenRefreshes  *prometheus.CounterVec
	AccessDecisions *prometheus.CounterVec
}

// New registers all service collectors on a fresh registry.
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheet_iam",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sheet_iam",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheet_iam",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		AccountLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sheet_iam",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failed logins",
		}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheet_iam",
			Name:      "token_refreshes_total",
			Help:      "Refresh token rotations by outcome",
		}, []string{"outcome"}),
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheet_iam",
			Name:      "access_decisions_total",
			Help:      "Authorization decisions by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.LoginAttempts,
		m.AccountLockouts,
		m.TokenRefreshes,
		m.AccessDecisions,
	)

	return m
}

// ObserveLogin counts a login attempt by outcome. Nil-safe so services can
// run without telemetry in tests.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveLockout counts an account lockout.
func (m *Metrics) ObserveLockout() {
	if m == nil {
		return
	}
	m.AccountLockouts.Inc()
}

// ObserveRefresh counts a refresh token rotation by outcome.
func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
