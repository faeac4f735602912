package webmonitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// EventSink receives every serialized state event as JSON. A non-empty key
// marks an event that a later one with the same key supersedes.
type EventSink interface {
	Broadcast(key string, data []byte)
}

// Presenter renders monitor outputs for browsers. It satisfies
// visibility.Presenter.
type Presenter struct {
	mu    sync.Mutex
	view  ViewState
	sinks []EventSink

	events *EventBroadcaster
}

// NewPresenter publishes to events and to any extra sinks.
func NewPresenter(events *EventBroadcaster, sinks ...EventSink) *Presenter {
	return &Presenter{
		events: events,
		sinks:  sinks,
	}
}

// View returns what the monitor screen shows right now.
func (p *Presenter) View() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// SnapshotEvent describes the full screen for a newly connected client.
func (p *Presenter) SnapshotEvent() StateEvent {
	view := p.View()
	ev := StateEvent{
		Type:       EventSnapshot,
		Status:     view.Status,
		CountLabel: view.CountLabel,
		Terminal:   view.Terminal,
		Timestamp:  now(),
	}
	if view.Terminal {
		ev.Location = TerminalPath
	}
	return ev
}

func (p *Presenter) ShowStatus(text string) {
	p.mu.Lock()
	p.view.Status = text
	p.mu.Unlock()

	p.publish(StateEvent{Type: EventStatus, Status: text, Timestamp: now()})
}

func (p *Presenter) ShowCount(text string) {
	p.mu.Lock()
	p.view.CountLabel = text
	p.mu.Unlock()

	p.publish(StateEvent{Type: EventCount, CountLabel: text, Timestamp: now()})
}

// Toast asks clients to show message and hide it after d.
func (p *Presenter) Toast(message string, d time.Duration) {
	logger.Info("Presenter", "Toast: %s", message)
	p.publish(StateEvent{
		Type:       EventToast,
		Message:    message,
		DurationMs: d.Milliseconds(),
		Timestamp:  now(),
	})
}

// NavigateTerminal replaces the monitor screen with the terminal screen.
// From now on the index redirects there.
func (p *Presenter) NavigateTerminal() {
	p.mu.Lock()
	p.view.Terminal = true
	p.mu.Unlock()

	logger.Info("Presenter", "Navigating clients to %s", TerminalPath)
	p.publish(StateEvent{
		Type:      EventNavigate,
		Location:  TerminalPath,
		Terminal:  true,
		Timestamp: now(),
	})
}

func (p *Presenter) publish(ev StateEvent) {
	se, err := serializeEvent(ev)
	if err != nil {
		logger.Error("Presenter", "Serialize %s event: %v", ev.Type, err)
		return
	}
	if p.events != nil {
		p.events.Broadcast(se)
	}
	for _, sink := range p.sinks {
		sink.Broadcast(se.Key, se.JSONData)
	}
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
