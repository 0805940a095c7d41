package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the relay
type Metrics struct {
	// Connection metrics
	ActiveConnections  prometheus.Gauge
	Connections        *prometheus.CounterVec
	ConnectionDuration prometheus.Histogram
	RejectedUpgrades   prometheus.Counter

	// Audio intake metrics
	AudioFrames prometheus.Counter
	AudioBytes  prometheus.Counter

	// Transcript relay metrics
	TranscriptMessages *prometheus.CounterVec
	SendFailures       prometheus.Counter

	// Backend metrics
	BackendErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Current number of open client connections",
		}),
		Connections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of finished client connections by outcome",
		}, []string{"outcome"}),
		ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_connection_duration_seconds",
			Help:    "Duration of client connections in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		RejectedUpgrades: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_rejected_upgrades_total",
			Help: "Total number of WebSocket upgrades refused during shutdown",
		}),

		AudioFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_frames_total",
			Help: "Total number of binary audio frames received from clients",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_bytes_total",
			Help: "Total number of audio bytes received from clients",
		}),

		TranscriptMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_transcript_messages_total",
			Help: "Total number of transcript messages sent to clients",
		}, []string{"final"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_send_failures_total",
			Help: "Total number of messages that could not be delivered to a client",
		}),

		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_backend_errors_total",
			Help: "Total number of transcription backend errors",
		}, []string{"stage", "kind"}),
	}
}

// RecordTranscript counts a transcript message sent to a client
func (m *Metrics) RecordTranscript(isFinal bool) {
	label := "false"
	if isFinal {
		label = "true"
	}
	m.TranscriptMessages.WithLabelValues(label).Inc()
}

// RecordBackendError counts a backend failure
func (m *Metrics) RecordBackendError(stage, kind string) {
	m.BackendErrors.WithLabelValues(stage, kind).Inc()
}

// RecordFrame counts one received audio frame
func (m *Metrics) RecordFrame(size int) {
	m.AudioFrames.Inc()
	m.AudioBytes.Add(float64(size))
}
