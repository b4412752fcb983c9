package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for finished exchanges.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics contains all Prometheus metrics for the advisor client
type Metrics struct {
	// Exchange metrics
	Exchanges         *prometheus.CounterVec
	ExchangeDuration  *prometheus.HistogramVec
	ExchangesInFlight prometheus.Gauge

	// Capture metrics
	RecordingsStarted prometheus.Counter
	RecordingBytes    prometheus.Histogram
	DeviceFailures    prometheus.Counter

	// Backend metrics
	BackendRequests *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loanadvisor_exchanges_total",
			Help: "Total number of finished exchanges by kind and outcome",
		}, []string{"kind", "outcome"}),
		ExchangeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loanadvisor_exchange_duration_seconds",
			Help:    "Time from optimistic append to reconciliation",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}, []string{"kind"}),
		ExchangesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "loanadvisor_exchanges_in_flight",
			Help: "Exchanges dispatched but not yet reconciled",
		}),

		RecordingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "loanadvisor_recordings_started_total",
			Help: "Total number of microphone capture sessions started",
		}),
		RecordingBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanadvisor_recording_size_bytes",
			Help:    "Size of finalized recordings",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		DeviceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "loanadvisor_device_failures_total",
			Help: "Total number of failed microphone acquisitions",
		}),

		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "loanadvisor_backend_requests_total",
			Help: "Total number of backend requests by endpoint and status class",
		}, []string{"endpoint", "status"}),
	}
}
