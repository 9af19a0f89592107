// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a transcription was dropped instead of stored, used as the
// "reason" label on the filtered-segments counter.
const (
	ReasonSpeaker = "speaker"
	ReasonHygiene = "hygiene"
	ReasonEmpty   = "empty"
)

// Metrics bundles every collector the service exports. One instance is
// shared by the HTTP server and the ingest handlers.
type Metrics struct {
	// Ingest pipeline
	SegmentsProcessed  prometheus.Counter
	SegmentsStored     prometheus.Counter
	SegmentsFiltered   *prometheus.CounterVec
	SpeakerSimilarity  prometheus.Histogram
	TranscribeDuration prometheus.Histogram
	EmbedFailures      prometheus.Counter
	SessionsStarted    prometheus.Counter

	// Enrollment
	Enrollments prometheus.Counter

	// Chat
	ChatRequests prometheus.Counter
	ChatFailures prometheus.Counter
	ChatDuration prometheus.Histogram

	// HTTP surface
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which keeps tests independent of the global
// registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SegmentsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_segments_processed_total",
			Help: "Audio chunks that entered the capture pipeline",
		}),
		SegmentsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_segments_stored_total",
			Help: "Transcript segments persisted to the store",
		}),
		SegmentsFiltered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "earshot_segments_filtered_total",
			Help: "Audio chunks dropped before storage, by reason",
		}, []string{"reason"}),
		SpeakerSimilarity: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earshot_speaker_similarity",
			Help:    "Voiceprint similarity scores observed at the gate",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		TranscribeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earshot_transcription_duration_seconds",
			Help:    "Wall time of speech-to-text calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		EmbedFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_embedding_failures_total",
			Help: "Segments stored without an embedding attached",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_sessions_started_total",
			Help: "New conversation sessions opened by the gap rule",
		}),

		Enrollments: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_enrollments_total",
			Help: "Successful voiceprint enrollments",
		}),

		ChatRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_chat_requests_total",
			Help: "Chat requests accepted for generation",
		}),
		ChatFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "earshot_chat_failures_total",
			Help: "Chat requests that ended in an error",
		}),
		ChatDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "earshot_chat_duration_seconds",
			Help:    "Wall time from chat request to final event",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "earshot_http_requests_total",
			Help: "HTTP requests served, by route and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "earshot_http_request_duration_seconds",
			Help:    "HTTP request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// RecordSegment counts one pipeline pass. Stored and filtered are
// mutually exclusive; reason is one of the Reason constants and is
// ignored when the segment was stored.
func (m *Metrics) RecordSegment(stored bool, reason string) {
	m.SegmentsProcessed.Inc()
	if stored {
		m.SegmentsStored.Inc()
		return
	}
	m.SegmentsFiltered.WithLabelValues(reason).Inc()
}

// ObserveSimilarity records a gate comparison score.
func (m *Metrics) ObserveSimilarity(score float64) {
	m.SpeakerSimilarity.Observe(score)
}

// ObserveTranscription records the duration of one speech-to-text call.
func (m *Metrics) ObserveTranscription(seconds float64) {
	m.TranscribeDuration.Observe(seconds)
}

// RecordEmbedFailure counts a segment whose embedding could not be
// attached at append time.
func (m *Metrics) RecordEmbedFailure() {
	m.EmbedFailures.Inc()
}

// RecordSessionStarted counts a segment that opened a new session.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordEnrollment counts a stored voiceprint.
func (m *Metrics) RecordEnrollment() {
	m.Enrollments.Inc()
}

// RecordChat counts a finished chat request and its wall time. Failed
// covers both refused requests and streams that ended in an error event.
func (m *Metrics) RecordChat(failed bool, seconds float64) {
	m.ChatRequests.Inc()
	if failed {
		m.ChatFailures.Inc()
	}
	m.ChatDuration.Observe(seconds)
}

// RecordHTTPRequest records one served request against the route
// template it matched.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
