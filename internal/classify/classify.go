// Package classify derives visual compliance styling from attendance
// status. Classification is a pure lookup: the upstream collaborator has
// already measured distance and geofence membership, and those fields
// are surfaced as-is, never recomputed here.
package classify

import (
	"math"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Class is the visual compliance bucket for a person marker or chip.
type Class string

const (
	ClassOnSite  Class = "on-site"
	ClassWarning Class = "warning"
	ClassAlert   Class = "alert"
	ClassNeutral Class = "neutral"
)

// Style is the concrete marker styling for a class.
type Style struct {
	Color string
	Pulse bool
}

var styles = map[Class]Style{
	ClassOnSite:  {Color: "#2ecc71", Pulse: true},
	ClassWarning: {Color: "#f5a623", Pulse: true},
	ClassAlert:   {Color: "#e74c3c", Pulse: true},
	ClassNeutral: {Color: "#95a5a6", Pulse: false},
}

// VenueStyle is the fixed styling for venue markers.
var VenueStyle = Style{Color: "#4a90d9", Pulse: false}

// Classification is the derived visual state for one attendance record.
type Classification struct {
	Class Class
	Style Style
	// DistanceMeters is the upstream-supplied distance rounded to the
	// nearest meter, or nil when the producer didn't attach one.
	DistanceMeters *int
}

// Classify maps an attendance record onto its visual classification.
// Status alone decides the class; distance is carried for display only.
func Classify(rec core.AttendanceRecord) Classification {
	var class Class
	switch rec.Status {
	case core.StatusCheckedIn:
		class = ClassOnSite
	case core.StatusCheckedInLate, core.StatusCheckedInRemote:
		class = ClassWarning
	case core.StatusNotCheckedIn:
		class = ClassAlert
	default:
		// checked_out and anything unknown render flat grey.
		class = ClassNeutral
	}

	c := Classification{Class: class, Style: styles[class]}
	if rec.DistanceMeters != nil {
		m := int(math.Round(*rec.DistanceMeters))
		c.DistanceMeters = &m
	}
	return c
}

// StatusLabel is the operator-facing label for a status.
func StatusLabel(s core.AttendanceStatus) string {
	switch s {
	case core.StatusCheckedIn:
		return "On site"
	case core.StatusCheckedInLate:
		return "Checked in late"
	case core.StatusCheckedInRemote:
		return "Checked in remote"
	case core.StatusCheckedOut:
		return "Checked out"
	case core.StatusNotCheckedIn:
		return "Not checked in"
	default:
		return "Unknown"
	}
}

// Icon is the compact chip glyph for a class in the fallback list.
func (c Class) Icon() string {
	switch c {
	case ClassOnSite:
		return "●"
	case ClassWarning:
		return "▲"
	case ClassAlert:
		return "✕"
	default:
		return "○"
	}
}
