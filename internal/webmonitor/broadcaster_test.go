package webmonitor

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
)

type recordingSink struct {
	keys []string
	got  [][]byte
}

func (s *recordingSink) Broadcast(key string, data []byte) {
	s.keys = append(s.keys, key)
	s.got = append(s.got, data)
}

func TestPresenterTracksView(t *testing.T) {
	sink := &recordingSink{}
	p := NewPresenter(nil, sink)

	p.ShowStatus("Face detected")
	p.ShowCount("Face Not Visible Count: 0")
	p.Toast("hello", time.Second)

	assert.Equal(t, ViewState{Status: "Face detected", CountLabel: "Face Not Visible Count: 0"}, p.View())
	require.Len(t, sink.got, 3)
	assert.Contains(t, string(sink.got[2]), `"type":"toast"`)
	assert.Equal(t, []string{EventStatus, EventCount, ""}, sink.keys)

	p.NavigateTerminal()
	assert.True(t, p.View().Terminal)
	assert.Equal(t, TerminalPath, p.SnapshotEvent().Location)
}

func eventTypes(t *testing.T, events []*SerializedEvent) []string {
	t.Helper()
	types := make([]string, 0, len(events))
	for _, ev := range events {
		var payload map[string]any
		require.NoError(t, json.Unmarshal(ev.JSONData, &payload))
		types = append(types, payload["type"].(string))
	}
	return types
}

func TestLaggingSubscriberStillNavigates(t *testing.T) {
	m := metrics.New()
	eb := NewEventBroadcaster(m)
	p := NewPresenter(eb)
	id, mb := eb.Subscribe()
	defer eb.Unsubscribe(id)

	// The client reads nothing while a burst of frames is rendered.
	for i := 0; i < 100; i++ {
		p.ShowStatus(visibility.StatusNoFaceDetected)
		p.ShowCount(visibility.CountLabel(i + 1))
	}
	p.Toast(visibility.ToastMessage, visibility.ToastDuration)
	for i := 100; i < 150; i++ {
		p.ShowStatus(visibility.StatusNoFaceDetected)
		p.ShowCount(visibility.CountLabel(i + 1))
	}
	p.NavigateTerminal()

	events, open := mb.Drain()
	assert.True(t, open)
	assert.Equal(t, []string{EventStatus, EventCount, EventToast, EventNavigate}, eventTypes(t, events))
	assert.Contains(t, string(events[1].JSONData), "Face Not Visible Count: 150")
	assert.EqualValues(t, 2*150-2, m.EventsCoalesced.Load())
}

func TestEveryToastReachesLaggingSubscriber(t *testing.T) {
	eb := NewEventBroadcaster(nil)
	p := NewPresenter(eb)
	_, mb := eb.Subscribe()

	for _i := 0; _i < 3; _i++ {
		for _j := 0; _j < 20; _j++ {
			p.ShowCount(visibility.CountLabel(1))
		}
		p.Toast(visibility.ToastMessage, visibility.ToastDuration)
	}

	events, _ := mb.Drain()
	assert.Equal(t, []string{EventCount, EventToast, EventToast, EventToast}, eventTypes(t, events))
}

func TestEventBroadcasterUnsubscribe(t *testing.T) {
	m := metrics.New()
	eb := NewEventBroadcaster(m)
	id, mb := eb.Subscribe()
	assert.EqualValues(t, 1, m.EventClients.Load())

	eb.Unsubscribe(id)
	eb.Unsubscribe(id)
	assert.Equal(t, 0, eb.ClientCount())
	assert.EqualValues(t, 0, m.EventClients.Load())

	_, open := mb.Drain()
	assert.False(t, open)

	ev, err := serializeEvent(StateEvent{Type: EventNavigate})
	require.NoError(t, err)
	eb.Broadcast(ev)
	assert.Equal(t, 0, mb.Len())
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderPreviewScalesAndEncodes(t *testing.T) {
	job := previewJob{
		img:   solid(1280, 720, color.RGBA{R: 40, G: 40, B: 200, A: 255}),
		faces: []detect.Face{{Bounds: image.Rect(100, 100, 300, 300), Score: 9}},
	}
	data, err := renderPreview(job, ViewState{Status: "Face detected", CountLabel: "Face Not Visible Count: 0"}, 640, 80)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy())

	// Box edge at (50..150, 50) after scaling by one half.
	r, g, b, _ := img.At(100, 51).RGBA()
	assert.Greater(t, g>>8, uint32(150))
	assert.Less(t, r>>8, uint32(100))
	assert.Less(t, b>>8, uint32(150))
}

func TestBlankJPEG(t *testing.T) {
	data, err := blankJPEG()
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())
}

func TestFrameBroadcasterSkipsWithoutClients(t *testing.T) {
	rendered := 0
	fb := NewFrameBroadcaster(DefaultConfig(), func() ViewState { return ViewState{} }, nil)
	fb.render = func(previewJob) ([]byte, error) {
		rendered++
		return []byte("jpeg"), nil
	}

	fb.Publish(solid(4, 4, color.White), detect.Result{})
	assert.Len(t, fb.jobs, 0)
	assert.Equal(t, 0, rendered)
}

func TestFrameBroadcasterFansOut(t *testing.T) {
	m := metrics.New()
	fb := NewFrameBroadcaster(DefaultConfig(), func() ViewState { return ViewState{Status: "Face detected"} }, m)
	fb.Start()
	defer fb.Stop()

	id1, ch1 := fb.Subscribe()
	id2, ch2 := fb.Subscribe()
	assert.EqualValues(t, 2, m.StreamClients.Load())

	fb.Publish(solid(64, 48, color.Black), detect.Result{})

	for _, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			_, err := jpeg.Decode(bytes.NewReader(data))
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for preview frame")
		}
	}

	fb.Unsubscribe(id1)
	fb.Unsubscribe(id2)
	assert.EqualValues(t, 0, m.StreamClients.Load())
}
