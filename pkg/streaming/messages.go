package streaming

import (
	"encoding/json"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Message type for the snapshot feed.
const (
	TypeSnapshot = "snapshot"
)

// Message types for the remote map client protocol. Outbound commands
// drive the thin browser map; inbound events report map lifecycle back
// to the supervisor.
const (
	TypeMapInit           = "map_init"
	TypeMarkerAdd         = "marker_add"
	TypeMarkerMove        = "marker_move"
	TypeMarkerRemove      = "marker_remove"
	TypePopupSet          = "popup_set"
	TypeFitBounds         = "fit_bounds"
	TypeZoom              = "zoom"
	TypeFallbackRender    = "fallback_render"
	TypeMapRemove         = "map_remove"
	TypeMapLoad           = "map_load"
	TypeMapError          = "map_error"
	TypeStyleImageMissing = "style_image_missing"
	TypeMarkerClick       = "marker_click"
)

// Envelope wraps every message on the wire, in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotPayload carries a full snapshot push from the live feed.
type SnapshotPayload struct {
	Events []core.Event `json:"events"`
}

// MapInitPayload tells the client to construct the map widget.
type MapInitPayload struct {
	StyleURL    string  `json:"styleUrl"`
	AccessToken string  `json:"accessToken"`
	CenterLng   float64 `json:"centerLng"`
	CenterLat   float64 `json:"centerLat"`
	Zoom        float64 `json:"zoom"`
}

// MarkerAddPayload creates a marker element on the client.
type MarkerAddPayload struct {
	MarkerID string  `json:"markerId"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Kind     string  `json:"kind"`
	Color    string  `json:"color"`
	Pulse    bool    `json:"pulse"`
	Label    string  `json:"label,omitempty"`
}

// MarkerMovePayload repositions an existing marker.
type MarkerMovePayload struct {
	MarkerID string  `json:"markerId"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
}

// MarkerRemovePayload releases a marker on the client.
type MarkerRemovePayload struct {
	MarkerID string `json:"markerId"`
}

// PopupSetPayload attaches popup HTML to a marker.
type PopupSetPayload struct {
	MarkerID string `json:"markerId"`
	HTML     string `json:"html"`
	Offset   int    `json:"offset,omitempty"`
}

// FitBoundsPayload fits the camera to a bounding box.
type FitBoundsPayload struct {
	MinLng   float64 `json:"minLng"`
	MinLat   float64 `json:"minLat"`
	MaxLng   float64 `json:"maxLng"`
	MaxLat   float64 `json:"maxLat"`
	Padding  int     `json:"padding,omitempty"`
	ZoomHint float64 `json:"zoomHint,omitempty"`
}

// ZoomPayload nudges the camera zoom by one step.
type ZoomPayload struct {
	Delta int `json:"delta"` // +1 zoom in, -1 zoom out
}

// FallbackRenderPayload replaces the map surface with the list view.
type FallbackRenderPayload struct {
	HTML string `json:"html"`
}

// MapEventPayload is an inbound map lifecycle event from the client.
type MapEventPayload struct {
	Message string `json:"message,omitempty"`
}

// MarkerClickPayload is an inbound click on a marker element.
type MarkerClickPayload struct {
	MarkerID string `json:"markerId"`
}
