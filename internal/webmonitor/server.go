package webmonitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
)

// OfferHandler answers WebRTC offers.
type OfferHandler interface {
	HandleOffer(offerJSON []byte) ([]byte, error)
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Presenter *Presenter
	Events    *EventBroadcaster
	Frames    *FrameBroadcaster
	State     func() visibility.State
	Metrics   *metrics.Metrics
	WebRTC    OfferHandler // optional
	// ICEServers are handed to browsers when WebRTC is set.
	ICEServers []string
}

// Server serves the monitor and terminal screens plus their data feeds.
type Server struct {
	cfg   Config
	deps  Deps
	index string
}

// NewServer returns a configured monitor server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Events == nil {
		deps.Events = NewEventBroadcaster(deps.Metrics)
	}
	if deps.Presenter == nil {
		deps.Presenter = NewPresenter(deps.Events)
	}
	if deps.State == nil {
		deps.State = func() visibility.State { s, _ := visibility.Initial(); return s }
	}
	return &Server{
		cfg:  cfg.withDefaults(),
		deps: deps,
		index: renderIndex(rtcPageConfig{
			Enabled:    deps.WebRTC != nil,
			ICEServers: deps.ICEServers,
		}),
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc(TerminalPath, s.handleDone)
	mux.Handle("/assets/", http.StripPrefix("/assets/", newAssetHandler(s.cfg.AssetsDir)))
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/state/stream", s.handleStateStream)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	// The monitor screen is gone for good once the terminal screen was shown.
	if s.deps.Presenter.View().Terminal {
		http.Redirect(w, r, TerminalPath, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(s.index))
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(doneHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Frames == nil {
		http.Error(w, "Preview unavailable", http.StatusServiceUnavailable)
		return
	}
	id, frameCh := s.deps.Frames.Subscribe()
	defer s.deps.Frames.Unsubscribe(id)
	streamMJPEGFromChannel(w, r, frameCh, s.cfg.PreviewInterval)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

func (s *Server) status() StatusResponse {
	state := s.deps.State()
	resp := StatusResponse{
		View: s.deps.Presenter.View(),
		Monitor: MonitorState{
			ConsecutiveAbsent: state.ConsecutiveAbsent,
			Phase:             state.Phase.String(),
			NotifyAt:          visibility.NotifyAt,
			TransitionAt:      visibility.TransitionAt,
		},
		Timestamp: float64(time.Now().Unix()),
	}
	if m := s.deps.Metrics; m != nil {
		resp.Pipeline = PipelineStats{
			FramesCaptured:    m.FramesCaptured.Load(),
			FramesDropped:     m.FramesDropped.Load(),
			FramesAnalyzed:    m.FramesAnalyzed.Load(),
			DetectionFailures: m.DetectionFailures.Load(),
			DetectLatencyMs:   m.DetectLatencyMs.Load(),
		}
	}
	return resp
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	id, mb := s.deps.Events.Subscribe()
	defer s.deps.Events.Unsubscribe(id)

	// Content negotiation based on Accept header
	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	first, err := serializeEvent(s.deps.Presenter.SnapshotEvent())
	if err != nil {
		logger.Error("WebMonitor", "Serialize snapshot: %v", err)
		http.Error(w, "Failed to serialize state", http.StatusInternalServerError)
		return
	}

	streamStateEvents(w, r, first, mb, useProtobuf, s.cfg.KeepAlive)
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}
	if payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	if s.deps.WebRTC == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC disabled"}, http.StatusServiceUnavailable)
		return
	}

	answer, err := s.deps.WebRTC.HandleOffer(body)
	if err != nil {
		logger.Warn("WebMonitor", "WebRTC offer rejected: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
