package detect

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// Async runs a Detector off the caller's goroutine, one frame per Submit.
type Async struct {
	Detector Detector
	// OnResult, if set, receives the upright image that was analyzed together
	// with its result, before the frame is released.
	OnResult func(upright image.Image, res Result)
}

// Submit starts detection on f and returns a channel that yields exactly one
// Result. f is released once detection finishes, whatever the outcome.
func (a *Async) Submit(ctx context.Context, f *capture.Frame) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		defer f.Release()

		upright := f.Upright()
		res := a.detect(ctx, f, upright)
		if a.OnResult != nil {
			a.OnResult(upright, res)
		}
		out <- res
	}()

	return out
}

func (a *Async) detect(ctx context.Context, f *capture.Frame, upright image.Image) (res Result) {
	res = Result{FrameNumber: f.Number, Captured: f.Captured}
	start := time.Now()

	defer func() {
		res.Latency = time.Since(start)
		if r := recover(); r != nil {
			logger.Error("Detector", "panic on frame #%d: %v\n%s", f.Number, r, debug.Stack())
			res.Faces = nil
			res.Err = fmt.Errorf("%w: panic: %v", ErrDetectionFailed, r)
		}
	}()

	faces, err := a.Detector.Detect(ctx, upright)
	if err != nil {
		res.Err = fmt.Errorf("%w: frame #%d: %w", ErrDetectionFailed, f.Number, err)
		return res
	}
	res.Faces = faces
	return res
}
