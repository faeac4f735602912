package visibility

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
)

// ErrAlreadyRunning is returned when Run is called on a monitor more than once.
var ErrAlreadyRunning = errors.New("visibility: monitor already running")

// Presenter renders monitor outputs. All calls are made from the monitor's
// own goroutine, one at a time.
type Presenter interface {
	ShowStatus(text string)
	ShowCount(text string)
	Toast(message string, d time.Duration)
	NavigateTerminal()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics records counter and threshold activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mon *Monitor) {
		mon.metrics = m
	}
}

// Monitor serializes every state change onto a single goroutine. Detection
// results may arrive from any goroutine through Deliver.
type Monitor struct {
	presenter Presenter
	metrics   *metrics.Metrics

	in     chan Observation
	done   chan struct{}
	closed chan struct{}

	running   atomic.Bool
	doneOnce  sync.Once
	closeOnce sync.Once

	mu    sync.Mutex
	state State
}

// NewMonitor creates a monitor that renders to p.
func NewMonitor(p Presenter, opts ...Option) *Monitor {
	m := &Monitor{
		presenter: p,
		in:        make(chan Observation),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run renders the initial display and then applies delivered observations
// until the screen transitions, is closed, or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	state, out := Initial()
	m.store(state)
	m.render(out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		case obs := <-m.in:
			select {
			case <-m.closed:
				logger.Debug("Monitor", "Discarding frame #%d result after close", obs.FrameNumber)
				return nil
			default:
			}

			next, out := Apply(m.Snapshot(), obs)
			m.store(next)
			m.render(out)

			if next.Phase == Transitioned {
				logger.Info("Monitor", "No face for %d frames, monitor screen finished", next.ConsecutiveAbsent)
				m.doneOnce.Do(func() { close(m.done) })
				return nil
			}
		}
	}
}

// Deliver hands one observation to the monitor goroutine. It returns false
// when the observation was discarded because the screen is gone or ctx ended.
func (m *Monitor) Deliver(ctx context.Context, obs Observation) bool {
	select {
	case <-m.done:
		return false
	case <-m.closed:
		return false
	default:
	}

	select {
	case m.in <- obs:
		return true
	case <-m.done:
		return false
	case <-m.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the terminal screen has been requested.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Close tears the screen down. Observations delivered afterwards are dropped.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func (m *Monitor) store(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.AbsentCount.Store(uint64(s.ConsecutiveAbsent))
	}
}

func (m *Monitor) render(out Outputs) {
	if out.Status != "" {
		m.presenter.ShowStatus(out.Status)
	}
	if out.CountLabel != "" {
		m.presenter.ShowCount(out.CountLabel)
	}
	if out.Notify {
		logger.Info("Monitor", "Absent count reached %d, showing toast", NotifyAt)
		if m.metrics != nil {
			m.metrics.Notifications.Add(1)
		}
		m.presenter.Toast(ToastMessage, ToastDuration)
	}
	if out.Navigate {
		if m.metrics != nil {
			m.metrics.Transitions.Add(1)
		}
		m.presenter.NavigateTerminal()
	}
}
