package remote

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

	"github.com/shiftpulse/pulsemap/internal/fallback"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
	"github.com/shiftpulse/pulsemap/pkg/streaming"
)

// Compile-time interface checks.
var (
	_ mapbackend.Capability = (*Capability)(nil)
	_ fallback.Sink         = (*Capability)(nil)
)

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) has(msgType string) bool {
	for _, env := range m.all() {
		if env.Type == msgType {
			return true
		}
	}
	return false
}

// testServer upgrades to WebSocket, records outbound commands, and
// exposes the server-side conn so tests can push client events.
func testServer(t *testing.T) (*httptest.Server, *messageLog, <-chan *ws.Conn) {
	t.Helper()
	ml := &messageLog{}
	connCh := make(chan *ws.Conn, 1)

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		connCh <- c

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)
		}
	}))

	return srv, ml, connCh
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendEvent(t *testing.T, conn *ws.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))
}

func dialedCapability(t *testing.T) (*Capability, *messageLog, *ws.Conn) {
	t.Helper()
	srv, ml, connCh := testServer(t)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: wsURL(srv), Secret: "s"}, slog.Default())
	require.NoError(t, err)
	require.NoError(t, c.Dial())
	t.Cleanup(func() { c.Close() })

	var serverConn *ws.Conn
	select {
	case serverConn = <-connCh:
	case <-time.After(time.Second):
		t.Fatal("server never saw the connection")
	}
	return c, ml, serverConn
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}

func TestNewMap_SendsInit(t *testing.T) {
	c, ml, _ := dialedCapability(t)

	_, err := c.NewMap(mapbackend.MapOptions{
		StyleURL:    "mapbox://styles/test",
		AccessToken: "pk.test",
		Center:      core.Coordinate{Lng: 78.4772, Lat: 17.4065},
		Zoom:        11,
	})
	require.NoError(t, err)

	eventually(t, func() bool { return ml.has(streaming.TypeMapInit) }, "map_init not sent")

	var p streaming.MapInitPayload
	for _, env := range ml.all() {
		if env.Type == streaming.TypeMapInit {
			require.NoError(t, json.Unmarshal(env.Payload, &p))
		}
	}
	assert.Equal(t, "pk.test", p.AccessToken)
	assert.Equal(t, 17.4065, p.CenterLat)
}

func TestMarkerLifecycle(t *testing.T) {
	c, ml, _ := dialedCapability(t)

	m, err := c.NewMap(mapbackend.MapOptions{AccessToken: "pk"})
	require.NoError(t, err)

	mk := m.AddMarker(mapbackend.MarkerElement{Kind: mapbackend.MarkerVenue, Color: "#4a90d9"})
	mk.SetLngLat(core.Coordinate{Lng: 78.4, Lat: 17.4})
	p := m.AddPopup(mapbackend.PopupOptions{Offset: 24})
	p.SetHTML("<b>venue</b>")
	mk.SetPopup(p)

	// Nothing on the wire before AddTo.
	assert.False(t, ml.has(streaming.TypeMarkerAdd))

	mk.AddTo()

	eventually(t, func() bool {
		return ml.has(streaming.TypeMarkerAdd) && ml.has(streaming.TypePopupSet)
	}, "marker_add/popup_set not sent")

	// A move after attach goes straight out.
	mk.SetLngLat(core.Coordinate{Lng: 78.5, Lat: 17.5})
	eventually(t, func() bool { return ml.has(streaming.TypeMarkerMove) }, "marker_move not sent")

	require.NoError(t, mk.Remove())
	eventually(t, func() bool { return ml.has(streaming.TypeMarkerRemove) }, "marker_remove not sent")

	assert.ErrorIs(t, mk.Remove(), mapbackend.ErrAlreadyRemoved)
}

func TestInboundEventsReachSubscribers(t *testing.T) {
	c, _, serverConn := dialedCapability(t)

	m, err := c.NewMap(mapbackend.MapOptions{AccessToken: "pk"})
	require.NoError(t, err)

	var mu sync.Mutex
	var got []mapbackend.Notification
	record := func(n mapbackend.Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	}
	m.On(mapbackend.NotifLoad, record)
	m.On(mapbackend.NotifError, record)

	sendEvent(t, serverConn, streaming.TypeMapLoad, streaming.MapEventPayload{})
	sendEvent(t, serverConn, streaming.TypeMapError, streaming.MapEventPayload{Message: "401 Unauthorized"})

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, "notifications not delivered")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, mapbackend.NotifLoad, got[0].Kind)
	assert.Equal(t, "401 Unauthorized", got[1].Message)
}

func TestMarkerClickRouted(t *testing.T) {
	c, ml, serverConn := dialedCapability(t)

	m, err := c.NewMap(mapbackend.MapOptions{AccessToken: "pk"})
	require.NoError(t, err)

	clicked := make(chan struct{})
	mk := m.AddMarker(mapbackend.MarkerElement{
		Kind:    mapbackend.MarkerPerson,
		OnClick: func() { close(clicked) },
	})
	mk.SetLngLat(core.Coordinate{Lng: 78.4, Lat: 17.4})
	mk.AddTo()

	eventually(t, func() bool { return ml.has(streaming.TypeMarkerAdd) }, "marker_add not sent")

	var added streaming.MarkerAddPayload
	for _, env := range ml.all() {
		if env.Type == streaming.TypeMarkerAdd {
			require.NoError(t, json.Unmarshal(env.Payload, &added))
		}
	}

	sendEvent(t, serverConn, streaming.TypeMarkerClick, streaming.MarkerClickPayload{MarkerID: added.MarkerID})

	select {
	case <-clicked:
	case <-time.After(time.Second):
		t.Fatal("click never reached the marker element")
	}
}

func TestPresentList(t *testing.T) {
	c, ml, _ := dialedCapability(t)

	require.NoError(t, c.PresentList(`<div class="pulse-fallback"></div>`))

	eventually(t, func() bool { return ml.has(streaming.TypeFallbackRender) }, "fallback_render not sent")
}

func TestCameraCommands(t *testing.T) {
	c, ml, _ := dialedCapability(t)

	m, err := c.NewMap(mapbackend.MapOptions{AccessToken: "pk"})
	require.NoError(t, err)

	m.FitBounds(mapbackend.Bounds{MinLng: 78.3, MinLat: 17.3, MaxLng: 78.5, MaxLat: 17.5},
		mapbackend.FitOptions{Padding: 48, ZoomHint: 12})
	m.ZoomIn()
	m.ZoomOut()
	require.NoError(t, m.Remove())

	eventually(t, func() bool {
		return ml.has(streaming.TypeFitBounds) && ml.has(streaming.TypeZoom) && ml.has(streaming.TypeMapRemove)
	}, "camera commands not sent")
}
