//go:build opencv

package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// Source captures frames with OpenCV.
type Source struct {
	opts    Options
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// Open opens the configured device.
func Open(opts Options) (*Source, error) {
	vc, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", ErrUnavailable, opts.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrUnavailable, opts.Device)
	}

	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(opts.FPS))
	}

	logger.Info("Camera", "Opened device %d (%dx%d@%d, rotation=%d, mirror=%v)",
		opts.Device, opts.Width, opts.Height, opts.FPS, opts.Rotation, opts.Mirror)

	return &Source{opts: opts, capture: vc}, nil
}

// Start reads frames until ctx is cancelled. Each frame keeps its Mat alive
// until released.
func (s *Source) Start(ctx context.Context, sink func(*capture.Frame)) error {
	var number uint64
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		vc := s.capture
		s.mu.Unlock()
		if vc == nil {
			return capture.ErrClosed
		}

		mat := gocv.NewMat()
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			failures++
			if failures%100 == 1 {
				logger.Warn("Camera", "Failed to read frame from device %d (%d consecutive)", s.opts.Device, failures)
			}
			time.Sleep(readRetryDelay)
			continue
		}
		failures = 0
		captured := time.Now()

		if s.opts.Mirror {
			gocv.Flip(mat, &mat, 1)
		}

		img, err := mat.ToImage()
		if err != nil {
			mat.Close()
			logger.Warn("Camera", "Frame conversion failed: %v", err)
			continue
		}

		number++
		m := mat
		sink(capture.NewFrame(number, captured, s.opts.Rotation, img, func() { m.Close() }))
	}
}

// Close releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
