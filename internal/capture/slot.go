package capture

import (
	"context"
	"sync"
)

// Slot holds at most one frame awaiting analysis. A newer frame replaces a
// pending one, which is released immediately.
type Slot struct {
	mu      sync.Mutex
	pending *Frame
	closed  bool
	ready   chan struct{}

	onDrop func(*Frame)
}

// NewSlot creates an empty slot. onDrop, if non-nil, is called for every
// frame replaced before it was taken.
func NewSlot(onDrop func(*Frame)) *Slot {
	return &Slot{
		ready:  make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// Put stores f as the pending frame. It reports false when the slot is closed,
// in which case f has been released.
func (s *Slot) Put(f *Frame) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.Release()
		return false
	}
	old := s.pending
	s.pending = f
	s.mu.Unlock()

	if old != nil {
		if s.onDrop != nil {
			s.onDrop(old)
		}
		old.Release()
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

// Take waits for the pending frame and removes it from the slot. The caller
// owns the returned frame and must release it.
func (s *Slot) Take(ctx context.Context) (*Frame, error) {
	for {
		s.mu.Lock()
		if f := s.pending; f != nil {
			s.pending = nil
			s.mu.Unlock()
			return f, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

// Close stops accepting frames and wakes up waiters. A frame already pending
// can still be taken.
func (s *Slot) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Discard releases the pending frame, if any.
func (s *Slot) Discard() {
	s.mu.Lock()
	f := s.pending
	s.pending = nil
	s.mu.Unlock()

	f.Release()
}
