package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
)

// Frame widths tell the scripted detector what to report.
const (
	widthFace    = 1
	widthNoFace  = 2
	widthFailure = 3
)

type scriptedDetector struct{}

func (scriptedDetector) Detect(ctx context.Context, img image.Image) ([]detect.Face, error) {
	switch img.Bounds().Dx() {
	case widthFace:
		return []detect.Face{{Bounds: image.Rect(0, 0, 1, 1), Score: 10}}, nil
	case widthFailure:
		return nil, errors.New("scripted failure")
	default:
		return nil, nil
	}
}

func (scriptedDetector) Close() error { return nil }

// steppedSource emits one frame per script entry and waits until the
// previous one was analyzed, so no frame is ever dropped.
type steppedSource struct {
	script   []int
	analyzed *atomic.Uint64
	released atomic.Int32
	closed   atomic.Bool
	stopped  chan error
}

func (s *steppedSource) Start(ctx context.Context, sink func(*capture.Frame)) error {
	err := s.run(ctx, sink)
	s.stopped <- err
	return err
}

func (s *steppedSource) run(ctx context.Context, sink func(*capture.Frame)) error {
	for i, w := range s.script {
		img := image.NewGray(image.Rect(0, 0, w, 1))
		sink(capture.NewFrame(uint64(i+1), time.Now(), 0, img, func() { s.released.Add(1) }))

		for s.analyzed.Load() < uint64(i+1) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *steppedSource) Close() error {
	s.closed.Store(true)
	return nil
}

type countingPresenter struct {
	mu       sync.Mutex
	statuses []string
	counts   []string
	toasts   int
	navs     int
}

func (p *countingPresenter) ShowStatus(text string) {
	p.mu.Lock()
	p.statuses = append(p.statuses, text)
	p.mu.Unlock()
}
func (p *countingPresenter) ShowCount(text string) {
	p.mu.Lock()
	p.counts = append(p.counts, text)
	p.mu.Unlock()
}
func (p *countingPresenter) Toast(string, time.Duration) {
	p.mu.Lock()
	p.toasts++
	p.mu.Unlock()
}
func (p *countingPresenter) NavigateTerminal() { p.mu.Lock(); p.navs++; p.mu.Unlock() }

func repeat(w, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func newRunner(script []int) (*Runner, *steppedSource, *countingPresenter, *metrics.Metrics) {
	met := metrics.New()
	src := &steppedSource{script: script, analyzed: &met.FramesAnalyzed, stopped: make(chan error, 1)}
	p := &countingPresenter{}
	mon := visibility.NewMonitor(p, visibility.WithMetrics(met))
	return &Runner{
		Source:  src,
		Detect:  &detect.Async{Detector: scriptedDetector{}},
		Monitor: mon,
		Metrics: met,
	}, src, p, met
}

func TestRunnerReachesTerminalScreen(t *testing.T) {
	script := append(repeat(widthNoFace, 99), widthFace)
	script = append(script, repeat(widthNoFace, visibility.TransitionAt)...)
	script = append(script, repeat(widthFace, 5)...)

	r, src, p, met := newRunner(script)
	go r.Monitor.Run(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not stop after transition")
	}

	assert.ErrorIs(t, <-src.stopped, context.Canceled)
	assert.True(t, src.closed.Load())

	state := r.Monitor.Snapshot()
	assert.Equal(t, visibility.Transitioned, state.Phase)
	assert.Equal(t, visibility.TransitionAt, state.ConsecutiveAbsent)

	p.mu.Lock()
	assert.Equal(t, 1, p.toasts)
	assert.Equal(t, 1, p.navs)
	p.mu.Unlock()

	assert.EqualValues(t, 0, met.FramesDropped.Load())
	assert.EqualValues(t, 1, met.FaceFrames.Load())
	assert.EqualValues(t, 1, met.Transitions.Load())
	assert.Eventually(t, func() bool {
		return met.FramesCaptured.Load() == uint64(src.released.Load())
	}, time.Second, 2*time.Millisecond, "every captured frame is released")
}

func TestRunnerFailureKeepsCount(t *testing.T) {
	script := []int{widthNoFace, widthNoFace, widthFailure, widthNoFace}
	r, _, p, met := newRunner(script)
	go r.Monitor.Run(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return met.FramesAnalyzed.Load() == 4 }, 5*time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return r.Monitor.Snapshot().ConsecutiveAbsent == 3 }, time.Second, 2*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, met.DetectionFailures.Load())
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Contains(t, p.statuses, visibility.StatusDetectionFailed)
	assert.Equal(t, "Face Not Visible Count: 3", p.counts[len(p.counts)-1])
}

type burstSource struct {
	n        int
	released atomic.Int32
}

func (s *burstSource) Start(ctx context.Context, sink func(*capture.Frame)) error {
	for i := 0; i < s.n; i++ {
		img := image.NewGray(image.Rect(0, 0, widthNoFace, 1))
		sink(capture.NewFrame(uint64(i+1), time.Now(), 0, img, func() { s.released.Add(1) }))
	}
	return nil
}

func (s *burstSource) Close() error { return nil }

func TestRunnerBurstDropsButReleasesEverything(t *testing.T) {
	met := metrics.New()
	src := &burstSource{n: 50}
	mon := visibility.NewMonitor(&countingPresenter{}, visibility.WithMetrics(met))
	go mon.Run(context.Background())
	defer mon.Close()

	r := &Runner{Source: src, Detect: &detect.Async{Detector: scriptedDetector{}}, Monitor: mon, Metrics: met}
	require.NoError(t, r.Run(context.Background()))

	assert.EqualValues(t, 50, met.FramesCaptured.Load())
	assert.EqualValues(t, 50, met.FramesAnalyzed.Load()+met.FramesDropped.Load())
	assert.Eventually(t, func() bool { return src.released.Load() == 50 }, time.Second, 2*time.Millisecond)
	assert.Eventually(t, func() bool {
		return uint64(mon.Snapshot().ConsecutiveAbsent) == met.FramesAnalyzed.Load()
	}, time.Second, 2*time.Millisecond)
}
