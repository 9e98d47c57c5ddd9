package core

import "encoding/json"

// Coordinate is a resolved (longitude, latitude) pair in decimal degrees.
// It is always derived, never read off the wire directly.
type Coordinate struct {
	Lng float64
	Lat float64
}

// LatLng is a coordinate object as the snapshot producer writes it.
// Both the {lat,lng} and {latitude,longitude} spellings appear upstream;
// when both are present lat/lng wins. Fields are pointers because absence
// matters to the resolver.
type LatLng struct {
	Lat *float64
	Lng *float64
}

// Valid reports whether both components are present.
func (l *LatLng) Valid() bool {
	return l != nil && l.Lat != nil && l.Lng != nil
}

// Coordinate converts to the canonical (lng, lat) form.
// Call only after checking Valid.
func (l *LatLng) Coordinate() Coordinate {
	return Coordinate{Lng: *l.Lng, Lat: *l.Lat}
}

func (l *LatLng) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat       *float64 `json:"lat"`
		Lng       *float64 `json:"lng"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Lat != nil && raw.Lng != nil:
		l.Lat, l.Lng = raw.Lat, raw.Lng
	case raw.Latitude != nil && raw.Longitude != nil:
		l.Lat, l.Lng = raw.Latitude, raw.Longitude
	default:
		// Partial objects resolve to nothing rather than erroring;
		// the resolver treats them as absent.
		l.Lat, l.Lng = raw.Lat, raw.Lng
	}
	return nil
}

func (l LatLng) MarshalJSON() ([]byte, error) {
	out := struct {
		Lat *float64 `json:"lat,omitempty"`
		Lng *float64 `json:"lng,omitempty"`
	}{Lat: l.Lat, Lng: l.Lng}
	return json.Marshal(out)
}

// GeoPoint is a raw check-in location as recorded by the producer.
// Fields are pointers because a record may carry a partial location;
// a missing latitude makes the point unresolvable.
type GeoPoint struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
