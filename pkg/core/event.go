package core

import "time"

// Event is one scheduled engagement with its venue and attendance roster.
// The venue location arrives in one of several shapes; the geo package
// resolves them in a fixed order. All shapes are kept here untouched.
type Event struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"clientName,omitempty"`

	// Venue is free text and may embed a "(lat,lng)" pair.
	Venue string `json:"venue,omitempty"`
	// VenueCoords is an explicit coordinate object when the producer has one.
	VenueCoords *LatLng `json:"venueCoords,omitempty"`
	// Flat coordinate fields, a third shape some producer paths emit.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// Location is a nested coordinate object, the last shape tried.
	Location *LatLng `json:"location,omitempty"`

	ScheduledAt *time.Time         `json:"scheduledAt,omitempty"`
	Attendance  []AttendanceRecord `json:"attendance"`
}

// CheckedInCount counts attendance records in any checked-in state.
func (e Event) CheckedInCount() int {
	n := 0
	for _, r := range e.Attendance {
		if r.CheckedIn() {
			n++
		}
	}
	return n
}

// LatestCheckIn returns the most recent check-in time on the roster,
// or nil when nobody has checked in.
func (e Event) LatestCheckIn() *time.Time {
	var latest *time.Time
	for _, r := range e.Attendance {
		if r.CheckInTime == nil {
			continue
		}
		if latest == nil || r.CheckInTime.After(*latest) {
			latest = r.CheckInTime
		}
	}
	return latest
}
