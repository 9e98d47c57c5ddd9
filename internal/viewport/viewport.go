// Package viewport computes camera-fit commands over the resolvable
// coordinate set and exposes the manual zoom and recenter controls.
package viewport

import (
	"math"

	"github.com/shiftpulse/pulsemap/internal/geo"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

const (
	// paddingRatio widens each axis by 10% of its span.
	paddingRatio = 0.10
	// degenerateEpsilon pads an axis with zero spread, roughly a
	// kilometer at the equator, so a single point never produces an
	// unusable zoom.
	degenerateEpsilon = 0.01
	// fitPaddingPx is the screen-pixel padding passed with fit commands.
	fitPaddingPx = 48

	minZoom = 1
	maxZoom = 18

	// mercatorWorld is the EPSG:3857 world extent in meters.
	mercatorWorld = 2 * math.Pi * 6378137
)

// Camera is the subset of the map surface the controller drives.
type Camera interface {
	FitBounds(b mapbackend.Bounds, opts mapbackend.FitOptions)
	ZoomIn()
	ZoomOut()
}

// CoordinateSource supplies the current snapshot's full resolvable
// coordinate set. Recenter always re-reads it, never a cached bound.
type CoordinateSource interface {
	Coordinates() []core.Coordinate
}

// Controller issues camera commands against a Camera.
type Controller struct {
	cam Camera
	src CoordinateSource

	// last is the most recently issued bound; an identical fit is
	// suppressed so Fit is observably idempotent.
	last *mapbackend.Bounds
}

// New creates a viewport controller.
func New(cam Camera, src CoordinateSource) *Controller {
	return &Controller{cam: cam, src: src}
}

// BoundsFor computes the padded bounding box covering the coordinates.
// Returns false for an empty set.
func BoundsFor(coords []core.Coordinate) (mapbackend.Bounds, bool) {
	if len(coords) == 0 {
		return mapbackend.Bounds{}, false
	}

	b := mapbackend.Bounds{
		MinLng: coords[0].Lng, MaxLng: coords[0].Lng,
		MinLat: coords[0].Lat, MaxLat: coords[0].Lat,
	}
	for _, c := range coords[1:] {
		b.MinLng = math.Min(b.MinLng, c.Lng)
		b.MaxLng = math.Max(b.MaxLng, c.Lng)
		b.MinLat = math.Min(b.MinLat, c.Lat)
		b.MaxLat = math.Max(b.MaxLat, c.Lat)
	}

	b.MinLng, b.MaxLng = pad(b.MinLng, b.MaxLng)
	b.MinLat, b.MaxLat = pad(b.MinLat, b.MaxLat)
	return b, true
}

// pad widens one axis: 10% of the span, or a fixed epsilon when the
// span is zero.
func pad(min, max float64) (float64, float64) {
	span := max - min
	p := span * paddingRatio
	if span == 0 {
		p = degenerateEpsilon
	}
	return min - p, max + p
}

// Fit issues a camera fit covering the coordinates. A no-op for an
// empty set, and for a bound identical to the last one issued.
func (c *Controller) Fit(coords []core.Coordinate) {
	b, ok := BoundsFor(coords)
	if !ok {
		return
	}
	if c.last != nil && *c.last == b {
		return
	}
	c.cam.FitBounds(b, mapbackend.FitOptions{
		Padding:  fitPaddingPx,
		ZoomHint: zoomHint(b),
	})
	c.last = &b
}

// zoomHint derives a camera zoom level from the bound's Web Mercator
// span, for clients that want an explicit zoom with the fit.
func zoomHint(b mapbackend.Bounds) float64 {
	x1, y1 := geo.WebMercator(core.Coordinate{Lng: b.MinLng, Lat: b.MinLat})
	x2, y2 := geo.WebMercator(core.Coordinate{Lng: b.MaxLng, Lat: b.MaxLat})
	span := math.Max(math.Abs(x2-x1), math.Abs(y2-y1))
	if span <= 0 {
		return maxZoom
	}
	z := math.Log2(mercatorWorld / span)
	return math.Max(minZoom, math.Min(maxZoom, z))
}

// ZoomIn steps the camera in.
func (c *Controller) ZoomIn() {
	c.cam.ZoomIn()
}

// ZoomOut steps the camera out.
func (c *Controller) ZoomOut() {
	c.cam.ZoomOut()
}

// Recenter refits the camera over the current snapshot's full
// coordinate set, venues and person check-ins alike.
func (c *Controller) Recenter() {
	c.Fit(c.src.Coordinates())
}
