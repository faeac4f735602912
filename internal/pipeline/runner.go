// Package pipeline connects a frame source, the face detector and the
// visibility monitor.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
)

// Runner moves frames from Source through Detector into Monitor. Only one
// frame is analyzed at a time; frames arriving meanwhile replace each other.
type Runner struct {
	Source  capture.Source
	Detect  *detect.Async
	Monitor *visibility.Monitor
	Metrics *metrics.Metrics
}

// Run blocks until ctx is cancelled, the source stops, or the monitor reaches
// its terminal screen. The source is closed before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-r.Monitor.Done():
			logger.Info("Pipeline", "Monitor finished, stopping capture")
			cancel()
		case <-ctx.Done():
		}
	}()

	slot := capture.NewSlot(func(f *capture.Frame) {
		if r.Metrics != nil {
			r.Metrics.FramesDropped.Add(1)
		}
	})

	var wg sync.WaitGroup
	var sourceErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer slot.Close()
		sourceErr = r.Source.Start(ctx, func(f *capture.Frame) {
			if r.Metrics != nil {
				r.Metrics.FramesCaptured.Add(1)
			}
			slot.Put(f)
		})
		if sourceErr != nil && !errors.Is(sourceErr, context.Canceled) {
			logger.Error("Pipeline", "Frame source stopped: %v", sourceErr)
		}
	}()

	err := r.consume(ctx, slot)

	cancel()
	wg.Wait()
	slot.Discard()
	if cerr := r.Source.Close(); cerr != nil {
		logger.Warn("Pipeline", "Closing frame source: %v", cerr)
	}

	if err == nil && sourceErr != nil && !errors.Is(sourceErr, context.Canceled) {
		return sourceErr
	}
	return err
}

func (r *Runner) consume(ctx context.Context, slot *capture.Slot) error {
	for {
		f, err := slot.Take(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var res detect.Result
		select {
		case res = <-r.Detect.Submit(ctx, f):
		case <-ctx.Done():
			// The worker still releases f when it finishes.
			return nil
		}

		r.record(res)

		obs := visibility.Observation{
			FrameNumber: res.FrameNumber,
			Faces:       len(res.Faces),
			Err:         res.Err,
		}
		if !r.Monitor.Deliver(ctx, obs) {
			logger.Debug("Pipeline", "Result for frame #%d discarded", res.FrameNumber)
			return nil
		}
		if r.Metrics != nil && !res.Captured.IsZero() {
			r.Metrics.UpdateFrameLatency(res.Captured)
		}
	}
}

func (r *Runner) record(res detect.Result) {
	if res.Err != nil {
		logger.Warn("Pipeline", "%v", res.Err)
	}
	if r.Metrics == nil {
		return
	}
	r.Metrics.FramesAnalyzed.Add(1)
	r.Metrics.UpdateDetectLatency(res.Latency)
	switch {
	case res.Err != nil:
		r.Metrics.DetectionFailures.Add(1)
	case len(res.Faces) > 0:
		r.Metrics.FaceFrames.Add(1)
	}
}
