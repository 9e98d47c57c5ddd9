package core

import "time"

// AttendanceStatus is the producer-side check-in state of a person.
type AttendanceStatus string

const (
	StatusCheckedIn       AttendanceStatus = "checked_in"
	StatusCheckedInLate   AttendanceStatus = "checked_in_late"
	StatusCheckedInRemote AttendanceStatus = "checked_in_remote"
	StatusCheckedOut      AttendanceStatus = "checked_out"
	StatusNotCheckedIn    AttendanceStatus = "not_checked_in"
)

// AttendanceRecord is one person's attendance state within an event.
// Distance and WithinRange are computed upstream against the venue geofence
// and are surfaced verbatim, never recomputed here.
type AttendanceRecord struct {
	PersonID        string           `json:"personId"`
	Name            string           `json:"name"`
	Role            string           `json:"role,omitempty"`
	Status          AttendanceStatus `json:"status"`
	CheckInLocation *GeoPoint        `json:"checkInLocation,omitempty"`
	CheckInTime     *time.Time       `json:"checkInTime,omitempty"`
	DistanceMeters  *float64         `json:"distance,omitempty"`
	WithinRange     *bool            `json:"isWithinRange,omitempty"`
}

// CheckedIn reports whether the person is currently checked in,
// in any of the three checked-in variants.
func (r AttendanceRecord) CheckedIn() bool {
	switch r.Status {
	case StatusCheckedIn, StatusCheckedInLate, StatusCheckedInRemote:
		return true
	}
	return false
}
