//go:build !linux || !cgo

package shmsource

import (
	"context"
	"errors"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
)

// Source is only available on linux with cgo.
type Source struct{}

// Open always fails on this platform.
func Open(name string, pollInterval time.Duration, rotation int) (*Source, error) {
	return nil, errors.New("shared memory frame source requires linux and cgo")
}

func (s *Source) Start(ctx context.Context, sink func(*capture.Frame)) error {
	return capture.ErrClosed
}

func (s *Source) Close() error {
	return nil
}
