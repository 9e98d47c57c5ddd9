// Package geo resolves the heterogeneous location shapes the snapshot
// producer emits into canonical (longitude, latitude) coordinates.
//
// A venue location can arrive as free text embedding a "(lat,lng)" pair,
// as an explicit coordinate object, as flat latitude/longitude fields on
// the event, or as a nested location object. Resolution tries the shapes
// in that fixed order; the first usable one wins. Note the parenthetical
// text form is (lat,lng) while everything downstream is (lng,lat); this
// matches the producer's convention and must not be "fixed."
package geo

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// ErrUnresolvable is returned when no shape yields a usable coordinate.
var ErrUnresolvable = errors.New("location unresolvable")

// parenPair matches parenthesized groups in venue text. Groups are
// scanned in order and the first one holding a numeric pair wins, so a
// named group like "(Annex B)" before the coordinates is skipped over.
var parenPair = regexp.MustCompile(`\(([^()]*)\)`)

// ResolveVenue resolves an event's venue location, trying each input
// shape in order. Malformed content at one step falls through to the
// next rather than failing the whole resolution.
func ResolveVenue(ev core.Event) (core.Coordinate, error) {
	// 1. Parenthesized "(lat,lng)" embedded in the venue text.
	if c, err := parseParenPair(ev.Venue); err == nil {
		return c, nil
	}

	// 2. Explicit coordinate object.
	if ev.VenueCoords.Valid() {
		return ev.VenueCoords.Coordinate(), nil
	}

	// 3. Flat latitude/longitude fields on the event itself.
	if ev.Latitude != nil && ev.Longitude != nil && finite(*ev.Latitude) && finite(*ev.Longitude) {
		return core.Coordinate{Lng: *ev.Longitude, Lat: *ev.Latitude}, nil
	}

	// 4. Nested location object.
	if ev.Location.Valid() {
		return ev.Location.Coordinate(), nil
	}

	return core.Coordinate{}, ErrUnresolvable
}

// ResolvePerson resolves a person's coordinate from their explicit
// check-in location. Nothing else is consulted: a person without a
// recorded check-in simply has no position on the map.
func ResolvePerson(rec core.AttendanceRecord) (core.Coordinate, error) {
	loc := rec.CheckInLocation
	if loc == nil || loc.Latitude == nil || loc.Longitude == nil {
		return core.Coordinate{}, ErrUnresolvable
	}
	if !finite(*loc.Latitude) || !finite(*loc.Longitude) {
		return core.Coordinate{}, ErrUnresolvable
	}
	return core.Coordinate{Lng: *loc.Longitude, Lat: *loc.Latitude}, nil
}

// parseParenPair extracts a "(a, b)" pair from venue text, reading a as
// latitude and b as longitude. Every malformed case (no parentheses,
// wrong arity, non-numeric or non-finite components) is ErrUnresolvable
// so the caller can fall through to the next shape.
func parseParenPair(text string) (core.Coordinate, error) {
	for _, m := range parenPair.FindAllStringSubmatch(text, -1) {
		parts := strings.Split(m[1], ",")
		if len(parts) != 2 {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || !finite(lat) {
			continue
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || !finite(lng) {
			continue
		}
		return core.Coordinate{Lng: lng, Lat: lat}, nil
	}
	return core.Coordinate{}, ErrUnresolvable
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
