// Package remote drives a thin browser map client over a websocket.
// Marker and camera operations become outbound command envelopes; the
// client reports map lifecycle events back, which are routed through
// the dispatcher into backend notifications.
package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shiftpulse/pulsemap/internal/dispatcher"
	"github.com/shiftpulse/pulsemap/internal/logging"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
	"github.com/shiftpulse/pulsemap/pkg/streaming"
)

// Config holds the map client endpoint.
type Config struct {
	URL    string
	Secret string
}

// Capability talks to one connected map client. It also implements the
// fallback sink: the list view travels over the same socket.
type Capability struct {
	cfg    Config
	logger *slog.Logger
	conn   *connection
	disp   *dispatcher.Dispatcher

	nextMarkerID atomic.Uint64

	mu sync.Mutex
	m  *Map
}

// New creates a remote capability and wires the inbound event routes.
func New(cfg Config, logger *slog.Logger) (*Capability, error) {
	c := &Capability{
		cfg:    cfg,
		logger: logger,
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating event dispatcher: %w", err)
	}
	c.disp = disp

	disp.Register(streaming.TypeMapLoad, func(msg dispatcher.Message) (any, error) {
		c.notify(mapbackend.NotifLoad, "")
		return nil, nil
	})
	disp.Register(streaming.TypeMapError, func(msg dispatcher.Message) (any, error) {
		var p streaming.MapEventPayload
		if err := json.Unmarshal(msg.Envelope.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding map_error payload: %w", err)
		}
		c.notify(mapbackend.NotifError, p.Message)
		return nil, nil
	})
	disp.Register(streaming.TypeStyleImageMissing, func(msg dispatcher.Message) (any, error) {
		var p streaming.MapEventPayload
		if err := json.Unmarshal(msg.Envelope.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding style_image_missing payload: %w", err)
		}
		c.notify(mapbackend.NotifStyleImageMissing, p.Message)
		return nil, nil
	}, dispatcher.Logged())
	disp.Register(streaming.TypeMarkerClick, func(msg dispatcher.Message) (any, error) {
		var p streaming.MarkerClickPayload
		if err := json.Unmarshal(msg.Envelope.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding marker_click payload: %w", err)
		}
		if m := c.currentMap(); m != nil {
			m.click(p.MarkerID)
		}
		return nil, nil
	}, dispatcher.Buffered(64))

	c.conn = newConnection(logger, c.handleInbound, c.handleDown)
	return c, nil
}

// Dial connects to the map client endpoint. Dialed exactly once; a
// failure here means the session runs without a spatial surface.
func (c *Capability) Dial() error {
	return c.conn.dial(c.cfg.URL, c.cfg.Secret)
}

// Close shuts the websocket down.
func (c *Capability) Close() error {
	return c.conn.close()
}

// NewMap sends map_init and returns the command-forwarding handle.
func (c *Capability) NewMap(opts mapbackend.MapOptions) (mapbackend.Map, error) {
	if !c.conn.active() {
		return nil, fmt.Errorf("map client connection is down")
	}

	m := &Map{
		cap:  c,
		subs: make(map[mapbackend.NotificationKind][]func(mapbackend.Notification)),
		mks:  make(map[string]*Marker),
	}

	err := c.sendEnvelope(streaming.TypeMapInit, streaming.MapInitPayload{
		StyleURL:    opts.StyleURL,
		AccessToken: opts.AccessToken,
		CenterLng:   opts.Center.Lng,
		CenterLat:   opts.Center.Lat,
		Zoom:        opts.Zoom,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.m = m
	c.mu.Unlock()
	return m, nil
}

// PresentList ships the fallback list HTML to the client.
func (c *Capability) PresentList(html string) error {
	return c.sendEnvelope(streaming.TypeFallbackRender, streaming.FallbackRenderPayload{HTML: html})
}

func (c *Capability) currentMap() *Map {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m
}

func (c *Capability) notify(kind mapbackend.NotificationKind, message string) {
	if m := c.currentMap(); m != nil {
		m.notify(kind, message)
	}
}

// handleInbound decodes a raw client message and routes it.
func (c *Capability) handleInbound(raw []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("Undecodable client message", "raw", string(raw))
		return
	}
	msg := dispatcher.Message{Envelope: env, ReceivedAt: time.Now()}
	if _, err := c.disp.Dispatch(msg); err != nil {
		c.logger.Debug("Client message not handled", "type", env.Type, "error", err)
	}
}

// handleDown turns a lost link into a fatal map error.
func (c *Capability) handleDown(err error) {
	c.notify(mapbackend.NotifError, fmt.Sprintf("connection lost: %v", err))
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it to
// the write loop (fire-and-forget).
func (c *Capability) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.send(data)
	return nil
}

// Map forwards marker and camera operations to the client.
type Map struct {
	cap *Capability

	mu      sync.Mutex
	subs    map[mapbackend.NotificationKind][]func(mapbackend.Notification)
	mks     map[string]*Marker
	removed bool
}

// On subscribes to client lifecycle notifications.
func (m *Map) On(kind mapbackend.NotificationKind, fn func(mapbackend.Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[kind] = append(m.subs[kind], fn)
}

func (m *Map) notify(kind mapbackend.NotificationKind, message string) {
	m.mu.Lock()
	subs := append([]func(mapbackend.Notification){}, m.subs[kind]...)
	m.mu.Unlock()
	n := mapbackend.Notification{Kind: kind, Message: message}
	for _, fn := range subs {
		fn(n)
	}
}

func (m *Map) click(markerID string) {
	m.mu.Lock()
	mk := m.mks[markerID]
	m.mu.Unlock()
	if mk == nil {
		return
	}
	mk.click()
}

// AddMarker allocates a marker handle. Nothing goes on the wire until
// AddTo.
func (m *Map) AddMarker(el mapbackend.MarkerElement) mapbackend.Marker {
	id := strconv.FormatUint(m.cap.nextMarkerID.Add(1), 10)
	return &Marker{m: m, id: id, el: el}
}

// AddPopup allocates a popup handle.
func (m *Map) AddPopup(opts mapbackend.PopupOptions) mapbackend.Popup {
	return &Popup{opts: opts}
}

// FitBounds sends a camera fit command.
func (m *Map) FitBounds(b mapbackend.Bounds, opts mapbackend.FitOptions) {
	_ = m.cap.sendEnvelope(streaming.TypeFitBounds, streaming.FitBoundsPayload{
		MinLng:   b.MinLng,
		MinLat:   b.MinLat,
		MaxLng:   b.MaxLng,
		MaxLat:   b.MaxLat,
		Padding:  opts.Padding,
		ZoomHint: opts.ZoomHint,
	})
}

// ZoomIn steps the camera in.
func (m *Map) ZoomIn() {
	_ = m.cap.sendEnvelope(streaming.TypeZoom, streaming.ZoomPayload{Delta: 1})
}

// ZoomOut steps the camera out.
func (m *Map) ZoomOut() {
	_ = m.cap.sendEnvelope(streaming.TypeZoom, streaming.ZoomPayload{Delta: -1})
}

// Remove tears the client map down. Idempotent.
func (m *Map) Remove() error {
	m.mu.Lock()
	if m.removed {
		m.mu.Unlock()
		return nil
	}
	m.removed = true
	m.mu.Unlock()
	return m.cap.sendEnvelope(streaming.TypeMapRemove, nil)
}

// Marker is a client marker handle.
type Marker struct {
	m  *Map
	id string

	mu       sync.Mutex
	el       mapbackend.MarkerElement
	lng, lat float64
	popup    *Popup
	attached bool
	removed  bool
}

// SetLngLat positions the marker. Once attached, moves go on the wire
// immediately.
func (mk *Marker) SetLngLat(c core.Coordinate) {
	mk.mu.Lock()
	mk.lng, mk.lat = c.Lng, c.Lat
	attached := mk.attached
	mk.mu.Unlock()

	if attached {
		_ = mk.m.cap.sendEnvelope(streaming.TypeMarkerMove, streaming.MarkerMovePayload{
			MarkerID: mk.id,
			Lng:      c.Lng,
			Lat:      c.Lat,
		})
	}
}

// SetPopup attaches a popup handle.
func (mk *Marker) SetPopup(p mapbackend.Popup) {
	pp, ok := p.(*Popup)
	if !ok {
		return
	}
	mk.mu.Lock()
	mk.popup = pp
	mk.mu.Unlock()
	pp.bind(mk)
}

// AddTo sends the marker element to the client and registers it for
// click routing.
func (mk *Marker) AddTo() {
	mk.mu.Lock()
	mk.attached = true
	el, lng, lat, popup := mk.el, mk.lng, mk.lat, mk.popup
	mk.mu.Unlock()

	_ = mk.m.cap.sendEnvelope(streaming.TypeMarkerAdd, streaming.MarkerAddPayload{
		MarkerID: mk.id,
		Lng:      lng,
		Lat:      lat,
		Kind:     string(el.Kind),
		Color:    el.Color,
		Pulse:    el.Pulse,
		Label:    el.Label,
	})

	if popup != nil {
		popup.push()
	}

	mk.m.mu.Lock()
	mk.m.mks[mk.id] = mk
	mk.m.mu.Unlock()
}

// Remove releases the marker. A second release returns ErrAlreadyRemoved.
func (mk *Marker) Remove() error {
	mk.mu.Lock()
	if mk.removed {
		mk.mu.Unlock()
		return mapbackend.ErrAlreadyRemoved
	}
	mk.removed = true
	mk.mu.Unlock()

	mk.m.mu.Lock()
	delete(mk.m.mks, mk.id)
	mk.m.mu.Unlock()

	return mk.m.cap.sendEnvelope(streaming.TypeMarkerRemove, streaming.MarkerRemovePayload{MarkerID: mk.id})
}

func (mk *Marker) click() {
	mk.mu.Lock()
	fn := mk.el.OnClick
	mk.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Popup is a client popup handle.
type Popup struct {
	opts mapbackend.PopupOptions

	mu    sync.Mutex
	html  string
	owner *Marker
}

// SetHTML stores the popup content and ships it if the owning marker
// is already attached.
func (p *Popup) SetHTML(html string) {
	p.mu.Lock()
	p.html = html
	owner := p.owner
	p.mu.Unlock()

	if owner != nil {
		owner.mu.Lock()
		attached := owner.attached
		owner.mu.Unlock()
		if attached {
			p.push()
		}
	}
}

func (p *Popup) bind(mk *Marker) {
	p.mu.Lock()
	p.owner = mk
	p.mu.Unlock()
}

func (p *Popup) push() {
	p.mu.Lock()
	html, owner, offset := p.html, p.owner, p.opts.Offset
	p.mu.Unlock()

	if owner == nil || html == "" {
		return
	}
	_ = owner.m.cap.sendEnvelope(streaming.TypePopupSet, streaming.PopupSetPayload{
		MarkerID: owner.id,
		HTML:     html,
		Offset:   offset,
	})
}
