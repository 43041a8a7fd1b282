package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capability outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwgp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gwgp_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	CapabilityCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwgp_capability_calls_total",
			Help: "Capability invocations by outcome",
		},
		[]string{"capability", "outcome"},
	)

	CapabilityLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gwgp_capability_latency_seconds",
			Help:    "Upstream model latency per capability in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"capability"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gwgp_active_sessions",
			Help: "Number of live assistant sessions",
		},
	)

	BusyRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwgp_busy_rejections_total",
			Help: "Submissions rejected because the page already had one in flight",
		},
		[]string{"page"},
	)
)

// ObserveCapability records one capability call.
func ObserveCapability(capability, outcome string, took time.Duration) {
	CapabilityCalls.WithLabelValues(capability, outcome).Inc()
	CapabilityLatency.WithLabelValues(capability).Observe(took.Seconds())
}
