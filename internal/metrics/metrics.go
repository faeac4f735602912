package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame pipeline counters
	FramesCaptured atomic.Uint64
	FramesDropped  atomic.Uint64 // replaced while pending analysis
	FramesAnalyzed atomic.Uint64

	// Detection outcomes
	DetectionFailures atomic.Uint64
	FaceFrames        atomic.Uint64

	// Visibility monitor
	AbsentCount   atomic.Uint64
	Notifications atomic.Uint64
	Transitions   atomic.Uint64

	// Latency tracking
	FrameLatencyMs  atomic.Uint64 // capture to result
	DetectLatencyMs atomic.Uint64

	// Presentation clients
	StreamClients   atomic.Uint64
	EventClients    atomic.Uint64
	WebRTCClients   atomic.Uint64
	EventsCoalesced atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

type gaugeDef struct {
	name  string
	help  string
	value *atomic.Uint64
}

func (m *Metrics) registerPrometheusMetrics() {
	defs := []gaugeDef{
		{"facewatch_frames_captured_total", "Total frames received from the frame source", &m.FramesCaptured},
		{"facewatch_frames_dropped_total", "Frames replaced by a newer frame before analysis", &m.FramesDropped},
		{"facewatch_frames_analyzed_total", "Frames run through the face detector", &m.FramesAnalyzed},
		{"facewatch_detection_failures_total", "Frames whose detection failed", &m.DetectionFailures},
		{"facewatch_faces_detected_frames_total", "Frames with at least one detected face", &m.FaceFrames},
		{"facewatch_absent_count", "Current consecutive frames without a face", &m.AbsentCount},
		{"facewatch_notifications_total", "Absent-face toasts shown", &m.Notifications},
		{"facewatch_transitions_total", "Transitions to the terminal screen", &m.Transitions},
		{"facewatch_frame_latency_ms", "Capture to monitor update latency in milliseconds", &m.FrameLatencyMs},
		{"facewatch_detect_latency_ms", "Face detection latency in milliseconds", &m.DetectLatencyMs},
		{"facewatch_stream_clients", "Connected MJPEG preview clients", &m.StreamClients},
		{"facewatch_event_clients", "Connected state event stream clients", &m.EventClients},
		{"facewatch_webrtc_clients", "Connected WebRTC data channel clients", &m.WebRTCClients},
		{"facewatch_events_coalesced_total", "Status and count events superseded before a slow client read them", &m.EventsCoalesced},
	}

	for _, def := range defs {
		value := def.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: def.name,
				Help: def.help,
			},
			func() float64 { return float64(value.Load()) },
		))
	}
}

// UpdateFrameLatency records the time elapsed since the frame was captured
func (m *Metrics) UpdateFrameLatency(captureTime time.Time) {
	latency := time.Since(captureTime).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	m.FrameLatencyMs.Store(uint64(latency))
}

// UpdateDetectLatency records the duration of the last detection
func (m *Metrics) UpdateDetectLatency(duration time.Duration) {
	m.DetectLatencyMs.Store(uint64(duration.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts a dedicated metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
