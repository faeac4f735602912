package visibility

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
)

type recordingPresenter struct {
	mu        sync.Mutex
	statuses  []string
	counts    []string
	toasts    []string
	navigated int
}

func (p *recordingPresenter) ShowStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, text)
}

func (p *recordingPresenter) ShowCount(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = append(p.counts, text)
}

func (p *recordingPresenter) Toast(message string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
}

func (p *recordingPresenter) NavigateTerminal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated++
}

func (p *recordingPresenter) lastCount() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.counts) == 0 {
		return ""
	}
	return p.counts[len(p.counts)-1]
}

func startMonitor(t *testing.T, opts ...Option) (*Monitor, *recordingPresenter, chan error) {
	t.Helper()
	p := &recordingPresenter{}
	m := NewMonitor(p, opts...)
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background()) }()
	return m, p, errCh
}

func TestMonitorRendersInitialCount(t *testing.T) {
	m, p, _ := startMonitor(t)
	defer m.Close()

	require.Eventually(t, func() bool { return p.lastCount() != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Face Not Visible Count: 0", p.lastCount())
	assert.Empty(t, p.toasts)
	assert.Zero(t, p.navigated)
}

func TestMonitorTransitionsAndDiscards(t *testing.T) {
	met := metrics.New()
	m, p, errCh := startMonitor(t, WithMetrics(met))
	ctx := context.Background()

	for i := 0; i < TransitionAt; i++ {
		require.True(t, m.Deliver(ctx, Observation{FrameNumber: uint64(i)}), "frame %d", i)
	}

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("monitor did not transition")
	}
	require.NoError(t, <-errCh)

	assert.False(t, m.Deliver(ctx, Observation{Faces: 1}))
	assert.Equal(t, State{ConsecutiveAbsent: TransitionAt, Phase: Transitioned}, m.Snapshot())
	assert.Equal(t, []string{ToastMessage}, p.toasts)
	assert.Equal(t, 1, p.navigated)
	assert.Equal(t, "Face Not Visible Count: 150", p.lastCount())

	assert.EqualValues(t, 1, met.Notifications.Load())
	assert.EqualValues(t, 1, met.Transitions.Load())
	assert.EqualValues(t, TransitionAt, met.AbsentCount.Load())
}

func TestMonitorFailureKeepsCount(t *testing.T) {
	m, p, _ := startMonitor(t)
	defer m.Close()
	ctx := context.Background()

	require.True(t, m.Deliver(ctx, Observation{}))
	require.True(t, m.Deliver(ctx, Observation{}))
	require.True(t, m.Deliver(ctx, Observation{Err: errors.New("boom")}))

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.statuses) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, m.Snapshot().ConsecutiveAbsent)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, StatusDetectionFailed, p.statuses[2])
	assert.Len(t, p.counts, 3) // initial + two absent frames
}

func TestMonitorCloseDropsLateResults(t *testing.T) {
	m, p, errCh := startMonitor(t)
	require.True(t, m.Deliver(context.Background(), Observation{}))
	require.Eventually(t, func() bool { return m.Snapshot().ConsecutiveAbsent == 1 }, time.Second, 5*time.Millisecond)

	m.Close()
	require.NoError(t, <-errCh)

	assert.False(t, m.Deliver(context.Background(), Observation{Faces: 1}))
	assert.Equal(t, 1, m.Snapshot().ConsecutiveAbsent)
	assert.Equal(t, "Face Not Visible Count: 1", p.lastCount())
}

func TestMonitorDeliverRespectsContext(t *testing.T) {
	m := NewMonitor(&recordingPresenter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nobody is running the monitor, so only ctx can unblock Deliver.
	assert.False(t, m.Deliver(ctx, Observation{}))
}

func TestMonitorRunOnce(t *testing.T) {
	m, _, _ := startMonitor(t)
	defer m.Close()

	require.Eventually(t, func() bool { return m.running.Load() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, m.Run(context.Background()), ErrAlreadyRunning)
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	m := NewMonitor(&recordingPresenter{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
