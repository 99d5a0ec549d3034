// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the counters the service layer increments. A fresh
// registry per instance keeps tests isolated from each other.
type Metrics struct {
	registry *prometheus.Registry

	HeartbeatsIngested prometheus.Counter
	LoginAttempts      *prometheus.CounterVec
	BadgesServed       prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HeartbeatsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_heartbeats_ingested_total",
			Help: "Heartbeats accepted and persisted.",
		}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		BadgesServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_badges_served_total",
			Help: "Badge images served to unauthenticated callers.",
		}),
	}
}

// Handler serves the /metrics endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
