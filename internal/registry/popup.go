package registry

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shiftpulse/pulsemap/internal/classify"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

// popupTimeLayout is how popups print times for the operator.
const popupTimeLayout = "15:04 Jan 2"

// venuePopupHTML summarizes an event for its venue marker: identity,
// checked-in counts and the most recent check-in.
func venuePopupHTML(ev core.Event) string {
	var b strings.Builder
	b.WriteString(`<div class="pulse-popup">`)
	fmt.Fprintf(&b, `<strong>%s</strong>`, html.EscapeString(ev.Name))
	if ev.ClientName != "" {
		fmt.Fprintf(&b, `<div class="client">%s</div>`, html.EscapeString(ev.ClientName))
	}
	fmt.Fprintf(&b, `<div class="counts">%d/%d checked in</div>`,
		ev.CheckedInCount(), len(ev.Attendance))
	if ev.ScheduledAt != nil {
		fmt.Fprintf(&b, `<div class="scheduled">Scheduled %s</div>`,
			ev.ScheduledAt.Format(popupTimeLayout))
	}
	if latest := ev.LatestCheckIn(); latest != nil {
		fmt.Fprintf(&b, `<div class="recency">Last check-in %s</div>`,
			latest.Format(popupTimeLayout))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// personPopupHTML summarizes one attendance record for its marker.
func personPopupHTML(rec core.AttendanceRecord, ev core.Event) string {
	cls := classify.Classify(rec)

	var b strings.Builder
	b.WriteString(`<div class="pulse-popup">`)
	fmt.Fprintf(&b, `<strong>%s</strong>`, html.EscapeString(rec.Name))
	if rec.Role != "" {
		fmt.Fprintf(&b, `<div class="role">%s</div>`, html.EscapeString(rec.Role))
	}
	fmt.Fprintf(&b, `<div class="status %s">%s</div>`,
		cls.Class, classify.StatusLabel(rec.Status))
	if cls.DistanceMeters != nil {
		fmt.Fprintf(&b, `<div class="distance">%dm from venue</div>`, *cls.DistanceMeters)
	}
	if rec.CheckInTime != nil {
		fmt.Fprintf(&b, `<div class="recency">Checked in %s</div>`,
			rec.CheckInTime.Format(popupTimeLayout))
	}
	fmt.Fprintf(&b, `<div class="event">%s</div>`, html.EscapeString(ev.Name))
	b.WriteString(`</div>`)
	return b.String()
}

// placeholderPopupHTML marks the empty-snapshot placeholder, stamped
// with the snapshot's arrival time so repeat passes reproduce it
// exactly.
func placeholderPopupHTML(receivedAt time.Time) string {
	return fmt.Sprintf(
		`<div class="pulse-popup"><strong>No events scheduled</strong><div class="recency">as of %s</div></div>`,
		receivedAt.Format(popupTimeLayout))
}
