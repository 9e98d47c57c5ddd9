// Package memory is a headless map backend. It records every marker,
// popup and camera command instead of rendering, which makes it both the
// test double for the whole pipeline and the capability used when the
// service runs without a browser client attached.
package memory

import (
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/shiftpulse/pulsemap/internal/geo"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Capability constructs headless maps. ConstructErr, when set, makes
// every NewMap call fail; tests use it to drive the supervisor into
// fallback.
type Capability struct {
	ConstructErr error

	mu   sync.Mutex
	maps []*Map
}

// New creates a headless capability.
func New() *Capability {
	return &Capability{}
}

// NewMap constructs a recording map handle.
func (c *Capability) NewMap(opts mapbackend.MapOptions) (mapbackend.Map, error) {
	if c.ConstructErr != nil {
		return nil, c.ConstructErr
	}
	m := &Map{
		opts:    opts,
		markers: make(map[int]*Marker),
		subs:    make(map[mapbackend.NotificationKind][]func(mapbackend.Notification)),
	}
	c.mu.Lock()
	c.maps = append(c.maps, m)
	c.mu.Unlock()
	return m, nil
}

// Constructed returns how many maps this capability has built.
func (c *Capability) Constructed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.maps)
}

// LastMap returns the most recently constructed map, or nil.
func (c *Capability) LastMap() *Map {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.maps) == 0 {
		return nil
	}
	return c.maps[len(c.maps)-1]
}

// CameraCommand is one recorded camera operation.
type CameraCommand struct {
	Op     string // "fit", "zoom_in", "zoom_out"
	Bounds mapbackend.Bounds
	Fit    mapbackend.FitOptions
}

// Map records marker and camera activity in memory.
type Map struct {
	mu      sync.Mutex
	opts    mapbackend.MapOptions
	markers map[int]*Marker
	nextID  int
	subs    map[mapbackend.NotificationKind][]func(mapbackend.Notification)
	camera  []CameraCommand
	removed bool

	fallbackHTML string
}

// On subscribes to synthetic lifecycle notifications.
func (m *Map) On(kind mapbackend.NotificationKind, fn func(mapbackend.Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[kind] = append(m.subs[kind], fn)
}

// Emit delivers a synthetic notification to subscribers. Tests use this
// to simulate map load, fatal errors and style warnings.
func (m *Map) Emit(kind mapbackend.NotificationKind, message string) {
	m.mu.Lock()
	subs := append([]func(mapbackend.Notification){}, m.subs[kind]...)
	m.mu.Unlock()
	n := mapbackend.Notification{Kind: kind, Message: message}
	for _, fn := range subs {
		fn(n)
	}
}

// AddMarker creates a recording marker handle.
func (m *Map) AddMarker(el mapbackend.MarkerElement) mapbackend.Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	mk := &Marker{parent: m, id: m.nextID, Element: el}
	m.markers[mk.id] = mk
	return mk
}

// AddPopup creates a recording popup handle.
func (m *Map) AddPopup(opts mapbackend.PopupOptions) mapbackend.Popup {
	return &Popup{Options: opts}
}

// FitBounds records a camera fit.
func (m *Map) FitBounds(b mapbackend.Bounds, opts mapbackend.FitOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = append(m.camera, CameraCommand{Op: "fit", Bounds: b, Fit: opts})
}

// ZoomIn records a zoom step.
func (m *Map) ZoomIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = append(m.camera, CameraCommand{Op: "zoom_in"})
}

// ZoomOut records a zoom step.
func (m *Map) ZoomOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = append(m.camera, CameraCommand{Op: "zoom_out"})
}

// Removed reports whether the map has been torn down.
func (m *Map) Removed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed
}

// Remove marks the map removed. Idempotent.
func (m *Map) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = true
	return nil
}

// PresentList records fallback list HTML, standing in for the surface a
// real client would swap the map out for.
func (m *Map) PresentList(html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackHTML = html
	return nil
}

// FallbackHTML returns the last presented fallback list.
func (m *Map) FallbackHTML() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbackHTML
}

// Camera returns the recorded camera command log.
func (m *Map) Camera() []CameraCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CameraCommand{}, m.camera...)
}

// LiveMarkers returns all markers that are attached and not removed.
func (m *Map) LiveMarkers() []*Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []*Marker
	for _, mk := range m.markers {
		if mk.live() {
			live = append(live, mk)
		}
	}
	return live
}

// Marker is a recording marker handle.
type Marker struct {
	parent *Map
	id     int

	Element mapbackend.MarkerElement

	mu       sync.Mutex
	position geom.Point
	coord    core.Coordinate
	popup    *Popup
	attached bool
	removed  bool
}

// SetLngLat positions the marker.
func (mk *Marker) SetLngLat(c core.Coordinate) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.coord = c
	mk.position = geo.Point(c)
}

// SetPopup attaches a popup handle.
func (mk *Marker) SetPopup(p mapbackend.Popup) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	if pp, ok := p.(*Popup); ok {
		mk.popup = pp
	}
}

// AddTo attaches the marker to its map.
func (mk *Marker) AddTo() {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.attached = true
}

// Remove releases the marker. A second release returns ErrAlreadyRemoved.
func (mk *Marker) Remove() error {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	if mk.removed {
		return mapbackend.ErrAlreadyRemoved
	}
	mk.removed = true
	return nil
}

// Click simulates an operator click on the marker element.
func (mk *Marker) Click() {
	if mk.Element.OnClick != nil {
		mk.Element.OnClick()
	}
}

// Coordinate returns the marker's current position.
func (mk *Marker) Coordinate() core.Coordinate {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.coord
}

// Position returns the marker geometry as a simplefeatures point.
func (mk *Marker) Position() geom.Point {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.position
}

// PopupHTML returns the attached popup's HTML, or "".
func (mk *Marker) PopupHTML() string {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	if mk.popup == nil {
		return ""
	}
	return mk.popup.HTML()
}

func (mk *Marker) live() bool {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	return mk.attached && !mk.removed
}

// Popup is a recording popup handle.
type Popup struct {
	Options mapbackend.PopupOptions

	mu   sync.Mutex
	html string
}

// SetHTML stores the popup content.
func (p *Popup) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// HTML returns the stored popup content.
func (p *Popup) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html
}
