package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the streaming
// transcription service
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsFinished prometheus.Counter
	SessionsAborted  prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Audio intake metrics
	BytesReceived  prometheus.Counter
	SamplesDropped prometheus.Counter

	// Pipeline metrics
	WindowsProcessed prometheus.Counter
	GateSkips        prometheus.Counter

	// Inference metrics
	InferenceDuration prometheus.Histogram
	InferenceFailures prometheus.Counter

	// Result metrics
	PartialsEmitted prometheus.Counter
	FinalsEmitted   prometheus.Counter

	// Transport metrics
	ActiveConnections prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_sessions",
			Help: "Current number of active transcription sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_finished_total",
			Help: "Total number of sessions that completed normally",
		}),
		SessionsAborted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_sessions_aborted_total",
			Help: "Total number of sessions aborted before completion",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_session_duration_seconds",
			Help:    "Duration of transcription sessions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		// Audio intake metrics
		BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_audio_bytes_received_total",
			Help: "Total bytes of audio received across all sessions",
		}),
		SamplesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_samples_dropped_total",
			Help: "Total samples dropped because the intake ring was over capacity",
		}),

		// Pipeline metrics
		WindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_windows_processed_total",
			Help: "Total inference windows processed",
		}),
		GateSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_gate_skips_total",
			Help: "Total audio steps skipped by the speech gate",
		}),

		// Inference metrics
		InferenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_inference_duration_seconds",
			Help:    "Wall-clock duration of inference passes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		InferenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_inference_failures_total",
			Help: "Total failed inference passes",
		}),

		// Result metrics
		PartialsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_partials_emitted_total",
			Help: "Total partial transcripts emitted",
		}),
		FinalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_finals_emitted_total",
			Help: "Total final transcripts emitted",
		}),

		// Transport metrics
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_connections",
			Help: "Current number of open client connections",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_requests_total",
			Help: "Total HTTP API requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stt_http_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_errors_total",
			Help: "Total HTTP API errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
