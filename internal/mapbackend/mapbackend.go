// Package mapbackend defines the opaque mapping capability the pulse map
// core is built against. The real rendering engine lives in the operator's
// browser; this package only models its surface: construct a map, add and
// remove markers and popups, move the camera, and subscribe to lifecycle
// notifications. Implementations live in the memory and remote
// subpackages.
package mapbackend

import (
	"errors"
	"strings"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// ErrAlreadyRemoved is returned when releasing a marker handle twice.
// Callers swallow it: a double release is never fatal.
var ErrAlreadyRemoved = errors.New("marker already removed")

// NotificationKind identifies a map lifecycle notification.
type NotificationKind string

const (
	NotifLoad              NotificationKind = "load"
	NotifError             NotificationKind = "error"
	NotifStyleImageMissing NotificationKind = "styleimagemissing"
)

// Notification is an asynchronous event from the map backend.
type Notification struct {
	Kind    NotificationKind
	Message string
}

// MapOptions configures map construction.
type MapOptions struct {
	StyleURL    string
	AccessToken string
	Center      core.Coordinate
	Zoom        float64
}

// Capability constructs map handles. Construction failure means the
// backend is unusable for this session and the caller degrades to the
// fallback presentation.
type Capability interface {
	NewMap(opts MapOptions) (Map, error)
}

// MarkerKind distinguishes the visual marker families.
type MarkerKind string

const (
	MarkerVenue       MarkerKind = "venue"
	MarkerPerson      MarkerKind = "person"
	MarkerPlaceholder MarkerKind = "placeholder"
)

// MarkerElement describes the visual element a marker is built from.
// OnClick is invoked by the backend when the operator clicks the marker;
// its return value is never interpreted.
type MarkerElement struct {
	Kind    MarkerKind
	Color   string
	Pulse   bool
	Label   string
	OnClick func()
}

// PopupOptions configures popup construction.
type PopupOptions struct {
	Offset int
}

// Popup is an opaque popup handle.
type Popup interface {
	SetHTML(html string)
}

// Marker is an opaque marker handle. Handles are owned exclusively by
// the marker registry; Remove must tolerate being called on an already
// removed handle by returning ErrAlreadyRemoved.
type Marker interface {
	SetLngLat(c core.Coordinate)
	SetPopup(p Popup)
	AddTo()
	Remove() error
}

// Bounds is a geographic bounding box in decimal degrees.
type Bounds struct {
	MinLng float64
	MinLat float64
	MaxLng float64
	MaxLat float64
}

// FitOptions tunes a camera-fit command.
type FitOptions struct {
	Padding  int
	ZoomHint float64
}

// Map is an opaque live map handle.
type Map interface {
	On(kind NotificationKind, fn func(Notification))
	AddMarker(el MarkerElement) Marker
	AddPopup(opts PopupOptions) Popup
	FitBounds(b Bounds, opts FitOptions)
	ZoomIn()
	ZoomOut()
	Remove() error
}

// fatalFragments are the error-text markers that indicate an
// unrecoverable backend failure: authorization or connectivity.
var fatalFragments = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"network",
	"connection",
	"fetch",
}

// IsFatal classifies a backend error message. Fatal errors force the
// session into fallback; everything else is logged and ignored.
func IsFatal(message string) bool {
	msg := strings.ToLower(message)
	for _, frag := range fatalFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
