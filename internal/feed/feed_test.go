package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpulse/pulsemap/pkg/core"
	"github.com/shiftpulse/pulsemap/pkg/streaming"
)

type captureApplier struct {
	mu    sync.Mutex
	snaps []core.Snapshot
}

func (a *captureApplier) Apply(snap core.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
}

func (a *captureApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snaps)
}

func (a *captureApplier) last() core.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snaps[len(a.snaps)-1]
}

// feedServer upgrades to WebSocket and pushes whatever the test queues.
func feedServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	outbound := make(chan []byte, 16)

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for data := range outbound {
			if err := c.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		}
	}))

	return srv, outbound
}

func feedURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func snapshotEnvelope(t *testing.T, events []core.Event) []byte {
	t.Helper()
	raw, err := json.Marshal(streaming.SnapshotPayload{Events: events})
	require.NoError(t, err)
	data, err := json.Marshal(streaming.Envelope{Type: streaming.TypeSnapshot, Payload: raw})
	require.NoError(t, err)
	return data
}

func TestSubscribe_DeliversSnapshots(t *testing.T) {
	srv, outbound := feedServer(t)
	defer srv.Close()

	applier := &captureApplier{}
	c, err := New(Config{URL: feedURL(srv), Secret: "s"}, applier, slog.Default())
	require.NoError(t, err)
	require.NoError(t, c.Subscribe())
	defer c.Close()

	outbound <- snapshotEnvelope(t, []core.Event{{ID: "e1", Name: "Expo Setup"}})
	outbound <- snapshotEnvelope(t, []core.Event{{ID: "e1"}, {ID: "e2"}})

	require.Eventually(t, func() bool {
		return applier.count() == 2
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, applier.last().Events, 2)
}

func TestSubscribe_IgnoresUnknownAndMalformed(t *testing.T) {
	srv, outbound := feedServer(t)
	defer srv.Close()

	applier := &captureApplier{}
	c, err := New(Config{URL: feedURL(srv), Secret: "s"}, applier, slog.Default())
	require.NoError(t, err)
	require.NoError(t, c.Subscribe())
	defer c.Close()

	outbound <- []byte(`not json at all`)
	outbound <- []byte(`{"type":"mystery","payload":{}}`)
	outbound <- snapshotEnvelope(t, []core.Event{{ID: "e1"}})

	require.Eventually(t, func() bool {
		return applier.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribe_DialFailure(t *testing.T) {
	applier := &captureApplier{}
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws/pulse", Secret: "s"}, applier, slog.Default())
	require.NoError(t, err)

	assert.Error(t, c.Subscribe())
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := feedServer(t)
	defer srv.Close()

	c, err := New(Config{URL: feedURL(srv), Secret: "s"}, &captureApplier{}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, c.Subscribe())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
