// Package metrics exposes Prometheus instrumentation for the voice core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice subsystem
type Metrics struct {
	// Capture/encoder metrics
	ChunksCaptured    prometheus.Counter
	BytesCaptured     prometheus.Counter
	RecordingsStarted prometheus.Counter
	RecordingsEnded   prometheus.Counter
	RecordingDuration prometheus.Histogram

	// Playback metrics
	PlaybackSessions prometheus.Counter
	PlaybackErrors   prometheus.Counter

	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
	GatewayFailures *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
}

// New creates and registers all voice metrics against the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_captured_total",
			Help: "Total number of audio chunks delivered by the capture device",
		}),
		BytesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_bytes_captured_total",
			Help: "Total number of audio bytes accumulated by encoder sessions",
		}),
		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_recordings_started_total",
			Help: "Total number of encoder sessions started",
		}),
		RecordingsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_recordings_ended_total",
			Help: "Total number of encoder sessions finalized",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_recording_duration_seconds",
			Help:    "Wall-clock duration of finalized recordings",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		PlaybackSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_playback_sessions_total",
			Help: "Total number of playback sessions loaded",
		}),
		PlaybackErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_playback_errors_total",
			Help: "Total number of playback sessions that failed to load",
		}),
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_gateway_requests_total",
			Help: "Total number of speech gateway requests by operation",
		}, []string{"operation"}),
		GatewayFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_gateway_failures_total",
			Help: "Total number of failed speech gateway requests by operation",
		}, []string{"operation"}),
		GatewayDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_gateway_request_duration_seconds",
			Help:    "Speech gateway request round-trip time by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// NewDefault registers against the default Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
