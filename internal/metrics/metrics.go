// Package metrics provides Prometheus metrics for the transcription workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mt"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// External transcription service calls
	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Session lifecycle
	SessionTransitions *prometheus.CounterVec

	// Event publishing
	EventsPublished *prometheus.CounterVec

	// Recording channel
	RecordingBytes prometheus.Counter
	WSClients      prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Calls to the external transcription service by operation and outcome",
		}, []string{"operation", "outcome"}),
		APIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of calls to the external transcription service",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state changes by target state",
		}, []string{"state"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events published by outcome",
		}, []string{"outcome"}),
		RecordingBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_bytes_total",
			Help:      "Audio bytes received over the recording websocket",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients_active",
			Help:      "Connected websocket clients",
		}),
	}
}

// ObserveAPICall records one external service call
func (m *Metrics) ObserveAPICall(operation, outcome string, started time.Time) {
	m.APIRequests.WithLabelValues(operation, outcome).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordTransition counts a session entering state
func (m *Metrics) RecordTransition(state string) {
	m.SessionTransitions.WithLabelValues(state).Inc()
}

// RecordPublish counts a published (or failed) event
func (m *Metrics) RecordPublish(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(outcome).Inc()
}
