package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/mailbox"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
)

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	// Key is set for events a newer one of the same type supersedes
	// (status, count). Toast, navigate and snapshot events have none.
	Key          string
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // google.protobuf.Struct, base64 encoded for SSE
}

func coalesceKey(eventType string) string {
	switch eventType {
	case EventStatus, EventCount:
		return eventType
	}
	return ""
}

func serializeEvent(ev StateEvent) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("json fields: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("struct: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf: %w", err)
	}

	return &SerializedEvent{
		Key:          coalesceKey(ev.Type),
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// EventBroadcaster manages fanout of state events to multiple SSE clients.
// A slow client skips stale status and count updates but still receives
// every toast and navigate event.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[int]*mailbox.Mailbox[*SerializedEvent]
	nextID  int
	metrics *metrics.Metrics
}

// NewEventBroadcaster creates an event broadcaster. m may be nil.
func NewEventBroadcaster(m *metrics.Metrics) *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[int]*mailbox.Mailbox[*SerializedEvent]),
		metrics: m,
	}
}

// Subscribe adds a new client and returns its mailbox.
func (eb *EventBroadcaster) Subscribe() (int, *mailbox.Mailbox[*SerializedEvent]) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.nextID
	eb.nextID++
	mb := mailbox.New[*SerializedEvent]()
	eb.clients[id] = mb
	eb.updateClientsLocked()

	logger.Debug("EventBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(eb.clients))
	return id, mb
}

// Unsubscribe removes a client.
func (eb *EventBroadcaster) Unsubscribe(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if mb, ok := eb.clients[id]; ok {
		mb.Close()
		delete(eb.clients, id)
		eb.updateClientsLocked()
		logger.Debug("EventBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(eb.clients))
	}
}

// ClientCount returns the number of subscribed clients.
func (eb *EventBroadcaster) ClientCount() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients)
}

// Broadcast queues event for every client without blocking.
func (eb *EventBroadcaster) Broadcast(event *SerializedEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, mb := range eb.clients {
		if replaced, _ := mb.Push(event.Key, event); replaced && eb.metrics != nil {
			eb.metrics.EventsCoalesced.Add(1)
		}
	}
}

func (eb *EventBroadcaster) updateClientsLocked() {
	if eb.metrics != nil {
		eb.metrics.EventClients.Store(uint64(len(eb.clients)))
	}
}

type previewJob struct {
	img    image.Image
	faces  []detect.Face
	failed bool
}

// FrameBroadcaster renders analyzed frames with their detections and fans
// the JPEGs out to preview clients.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	stop    chan struct{}
	stopped bool

	jobs    chan previewJob
	render  func(previewJob) ([]byte, error)
	metrics *metrics.Metrics
}

// NewFrameBroadcaster creates a broadcaster. labels supplies the text drawn
// on top of each frame.
func NewFrameBroadcaster(cfg Config, labels func() ViewState, m *metrics.Metrics) *FrameBroadcaster {
	cfg = cfg.withDefaults()
	return &FrameBroadcaster{
		clients: make(map[int]chan []byte),
		stop:    make(chan struct{}),
		jobs:    make(chan previewJob, 1),
		metrics: m,
		render: func(job previewJob) ([]byte, error) {
			return renderPreview(job, labels(), cfg.PreviewWidth, cfg.PreviewQuality)
		},
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	fb.clients[id] = ch
	if fb.metrics != nil {
		fb.metrics.StreamClients.Store(uint64(len(fb.clients)))
	}

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		if fb.metrics != nil {
			fb.metrics.StreamClients.Store(uint64(len(fb.clients)))
		}
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// Publish queues an analyzed frame for rendering. Frames are skipped when
// nobody watches or the renderer is still busy with the previous one.
func (fb *FrameBroadcaster) Publish(img image.Image, res detect.Result) {
	fb.mu.Lock()
	clientCount := len(fb.clients)
	fb.mu.Unlock()
	if clientCount == 0 || img == nil {
		return
	}

	job := previewJob{img: img, faces: res.Faces, failed: res.Err != nil}
	select {
	case fb.jobs <- job:
	default:
	}
}

// Start begins the render and broadcast loop.
func (fb *FrameBroadcaster) Start() {
	go fb.run()
}

// Stop halts the broadcaster.
func (fb *FrameBroadcaster) Stop() {
	fb.mu.Lock()
	if !fb.stopped {
		close(fb.stop)
		fb.stopped = true
	}
	fb.mu.Unlock()
}

func (fb *FrameBroadcaster) run() {
	for {
		select {
		case <-fb.stop:
			return
		case job := <-fb.jobs:
			start := time.Now()
			data, err := fb.render(job)
			if err != nil {
				logger.Warn("FrameBroadcaster", "Render failed: %v", err)
				continue
			}
			logger.Debug("FrameBroadcaster", "Rendered preview (%d bytes, %v)", len(data), time.Since(start))
			fb.broadcast(data)
		}
	}
}

func (fb *FrameBroadcaster) broadcast(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}
