//go:build !opencv

package camera

import (
	"context"
	"fmt"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
)

// Source is unavailable without the opencv build tag.
type Source struct{}

// Open always fails; rebuild with -tags opencv for camera capture.
func Open(opts Options) (*Source, error) {
	return nil, fmt.Errorf("%w: built without opencv (device %d)", ErrUnavailable, opts.Device)
}

func (s *Source) Start(ctx context.Context, sink func(*capture.Frame)) error {
	return ErrUnavailable
}

func (s *Source) Close() error {
	return nil
}
