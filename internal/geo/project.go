package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Point converts a resolved coordinate into a simplefeatures point
// (EPSG:4326, X=lng Y=lat). The headless map backend stores marker
// geometry in this form.
func Point(c core.Coordinate) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: c.Lng, Y: c.Lat},
	})
}

// WebMercator projects a coordinate into EPSG:3857 meters. The viewport
// controller uses the mercator span of a bounding box to derive the zoom
// hint attached to camera-fit commands.
func WebMercator(c core.Coordinate) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(c.Lng, c.Lat, 0)
	return x, y
}
