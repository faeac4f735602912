package webmonitor

// Event types pushed to browsers.
const (
	EventSnapshot = "snapshot"
	EventStatus   = "status"
	EventCount    = "count"
	EventToast    = "toast"
	EventNavigate = "navigate"
)

// TerminalPath is the screen shown once the monitor has finished.
const TerminalPath = "/done"

// ViewState is what the monitor screen currently displays.
type ViewState struct {
	Status     string `json:"status"`
	CountLabel string `json:"count_label"`
	Terminal   bool   `json:"terminal"`
}

// StateEvent is one presentation change, as sent over SSE and WebRTC.
type StateEvent struct {
	Type       string  `json:"type"`
	Status     string  `json:"status,omitempty"`
	CountLabel string  `json:"count_label,omitempty"`
	Message    string  `json:"message,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Location   string  `json:"location,omitempty"`
	Terminal   bool    `json:"terminal,omitempty"`
	Timestamp  float64 `json:"timestamp"`
}

// MonitorState mirrors visibility.State for the status API.
type MonitorState struct {
	ConsecutiveAbsent int    `json:"consecutive_absent"`
	Phase             string `json:"phase"`
	NotifyAt          int    `json:"notify_at"`
	TransitionAt      int    `json:"transition_at"`
}

// PipelineStats mirrors the pipeline counters for the status API.
type PipelineStats struct {
	FramesCaptured    uint64 `json:"frames_captured"`
	FramesDropped     uint64 `json:"frames_dropped"`
	FramesAnalyzed    uint64 `json:"frames_analyzed"`
	DetectionFailures uint64 `json:"detection_failures"`
	DetectLatencyMs   uint64 `json:"detect_latency_ms"`
}

// StatusResponse is the payload of /api/status.
type StatusResponse struct {
	View      ViewState     `json:"view"`
	Monitor   MonitorState  `json:"monitor"`
	Pipeline  PipelineStats `json:"pipeline"`
	Timestamp float64       `json:"timestamp"`
}
