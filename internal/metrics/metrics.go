// Package metrics collects and exposes Prometheus metrics for the
// authentication and authorization paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus counters recorded by handlers.
type Collector struct {
	registrations prometheus.Counter
	loginSuccess  prometheus.Counter
	loginFailure  prometheus.Counter
	authzDenied   *prometheus.CounterVec
	registry      *prometheus.Registry
}

// NewCollector creates a Collector and registers its metrics on a fresh
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_registrations_total",
			Help: "Total number of successful account registrations.",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_login_success_total",
			Help: "Total number of successful logins.",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userhub_login_failure_total",
			Help: "Total number of rejected logins.",
		}),
		authzDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userhub_authz_denied_total",
			Help: "Total number of authorization denials by resource.",
		}, []string{"resource"}),
		registry: registry,
	}

	registry.MustRegister(
		c.registrations,
		c.loginSuccess,
		c.loginFailure,
		c.authzDenied,
	)

	return c
}

// RecordRegistration increments the registration counter.
func (c *Collector) RecordRegistration() {
	if c == nil {
		return
	}
	c.registrations.Inc()
}

// RecordLogin increments the login counter for the given outcome.
func (c *Collector) RecordLogin(success bool) {
	if c == nil {
		return
	}
	if success {
		c.loginSuccess.Inc()
		return
	}
	c.loginFailure.Inc()
}

// RecordAuthzDenied increments the denial counter for the given resource.
func (c *Collector) RecordAuthzDenied(resource string) {
	if c == nil {
		return
	}
	c.authzDenied.WithLabelValues(resource).Inc()
}

// Handler returns the /metrics HTTP handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
