package webmonitor

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/visibility"
)

type testEnv struct {
	server    *httptest.Server
	presenter *Presenter
	events    *EventBroadcaster
	frames    *FrameBroadcaster
	metrics   *metrics.Metrics
	state     visibility.State
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{metrics: metrics.New()}
	env.events = NewEventBroadcaster(env.metrics)
	env.presenter = NewPresenter(env.events)
	env.frames = NewFrameBroadcaster(DefaultConfig(), env.presenter.View, env.metrics)
	env.frames.Start()
	t.Cleanup(env.frames.Stop)

	deps := Deps{
		Presenter: env.presenter,
		Events:    env.events,
		Frames:    env.frames,
		State:     func() visibility.State { return env.state },
		Metrics:   env.metrics,
	}
	if mutate != nil {
		mutate(&deps)
	}
	cfg := DefaultConfig()
	cfg.AssetsDir = t.TempDir()
	env.server = httptest.NewServer(NewServer(cfg, deps).Handler())
	t.Cleanup(env.server.Close)
	return env
}

// sseStream reads events from one open SSE connection.
type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func openSSE(t *testing.T, url string, accept string) *sseStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return &sseStream{resp: resp, reader: bufio.NewReader(resp.Body)}
}

// next returns the data of the next event, skipping keepalive comments.
func (s *sseStream) next(t *testing.T) string {
	t.Helper()
	result := make(chan string, 1)
	go func() {
		var data string
		for {
			text, err := s.reader.ReadString('\n')
			if err != nil {
				result <- ""
				return
			}
			text = strings.TrimRight(text, "\r\n")
			switch {
			case strings.HasPrefix(text, "data: "):
				data = strings.TrimPrefix(text, "data: ")
			case text == "" && data != "":
				result <- data
				return
			}
		}
	}()

	select {
	case data := <-result:
		require.NotEmpty(t, data, "sse stream closed before event")
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sse event")
		return ""
	}
}

func (s *sseStream) nextJSON(t *testing.T) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.next(t)), &payload))
	return payload
}

func (s *sseStream) nextProtobuf(t *testing.T) map[string]any {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s.next(t))
	require.NoError(t, err)
	var st structpb.Struct
	require.NoError(t, proto.Unmarshal(raw, &st))
	return st.AsMap()
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload), "invalid json: %s", string(body))
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	require.True(t, ok, "expected %s to be string, got %T", field, value)
	return str
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	require.True(t, ok, "expected %s to be object, got %T", field, value)
	return m
}
