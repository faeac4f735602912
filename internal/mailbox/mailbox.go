// Package mailbox is a per-subscriber event queue for slow readers.
//
// Events pushed with a key supersede a still-pending event with the same
// key in place. Events without a key are always kept. A reader that falls
// behind therefore skips intermediate values but never loses a one-shot
// event, and the queue holds at most one entry per key plus the one-shot
// events not yet read.
package mailbox

import "sync"

type entry[T any] struct {
	key string
	val T
}

// Mailbox is safe for concurrent pushes. Ready and Drain serve one reader.
type Mailbox[T any] struct {
	mu      sync.Mutex
	pending []entry[T]
	ready   chan struct{}
	closed  bool
}

// New creates an empty, open mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Push queues v. It reports whether v replaced a pending event with the same
// key, and false for ok once the mailbox is closed.
func (m *Mailbox[T]) Push(key string, v T) (replaced, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, false
	}

	if key != "" {
		for i := range m.pending {
			if m.pending[i].key == key {
				m.pending[i].val = v
				return true, true
			}
		}
	}
	m.pending = append(m.pending, entry[T]{key: key, val: v})

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return false, true
}

// Ready is signalled after a Push and closed by Close.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.ready
}

// Drain returns every pending event in order. open is false once the
// mailbox was closed; events pushed before Close are still returned.
func (m *Mailbox[T]) Drain() (events []T, open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events = make([]T, len(m.pending))
	for i, e := range m.pending {
		events[i] = e.val
	}
	m.pending = m.pending[:0]
	return events, !m.closed
}

// Len reports the number of pending events.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close stops accepting events and wakes the reader.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.ready)
}
