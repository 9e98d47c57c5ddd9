package registry

import (
	"sync"

	"github.com/shiftpulse/pulsemap/internal/mapbackend"
)

// Key is the stable identity of a marker across reconciliation passes.
// A venue marker is keyed by event id alone; a person marker by
// (event id, person id). At most one live handle exists per key.
type Key struct {
	EventID  string
	PersonID string
}

// VenueKey builds the key for an event's venue marker.
func VenueKey(eventID string) Key {
	return Key{EventID: eventID}
}

// PersonKey builds the key for a person-within-event marker.
func PersonKey(eventID, personID string) Key {
	return Key{EventID: eventID, PersonID: personID}
}

// placeholderKey identifies the single "no events" marker shown on an
// empty snapshot so the operator can tell the map itself loaded.
var placeholderKey = Key{EventID: "__no_events__"}

// handleStore maps marker keys to their live backend handles for the
// current session. The registry is the only writer.
type handleStore struct {
	mu      sync.RWMutex
	handles map[Key]mapbackend.Marker
}

func newHandleStore() *handleStore {
	return &handleStore{
		handles: make(map[Key]mapbackend.Marker),
	}
}

// Get retrieves a handle by key.
func (s *handleStore) Get(k Key) (mapbackend.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[k]
	return h, ok
}

// Set stores a handle by key.
func (s *handleStore) Set(k Key, h mapbackend.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[k] = h
}

// Delete removes a handle entry by key.
func (s *handleStore) Delete(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, k)
}

// Keys returns a snapshot of all stored keys.
func (s *handleStore) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.handles))
	for k := range s.handles {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live handles.
func (s *handleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

// Reset clears the store without releasing handles; callers must have
// released them first.
func (s *handleStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = make(map[Key]mapbackend.Marker)
}
