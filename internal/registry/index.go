package registry

import (
	"sync"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// snapshotIndex resolves a marker key back to the record and event it
// was built from, so a marker click can hand both to the focus callback.
// It is rebuilt from scratch on every reconciliation pass.
type snapshotIndex struct {
	mu      sync.RWMutex
	events  map[string]core.Event
	records map[Key]core.AttendanceRecord
}

func newSnapshotIndex() *snapshotIndex {
	return &snapshotIndex{
		events:  make(map[string]core.Event),
		records: make(map[Key]core.AttendanceRecord),
	}
}

// Rebuild replaces the index contents from a snapshot.
func (ix *snapshotIndex) Rebuild(snap core.Snapshot) {
	events := make(map[string]core.Event, len(snap.Events))
	records := make(map[Key]core.AttendanceRecord)
	for _, ev := range snap.Events {
		events[ev.ID] = ev
		for _, rec := range ev.Attendance {
			records[PersonKey(ev.ID, rec.PersonID)] = rec
		}
	}
	ix.mu.Lock()
	ix.events = events
	ix.records = records
	ix.mu.Unlock()
}

// Lookup returns the record and event behind a person marker key.
func (ix *snapshotIndex) Lookup(k Key) (core.AttendanceRecord, core.Event, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.records[k]
	if !ok {
		return core.AttendanceRecord{}, core.Event{}, false
	}
	ev, ok := ix.events[k.EventID]
	return rec, ev, ok
}

// Event returns the event for an id.
func (ix *snapshotIndex) Event(id string) (core.Event, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ev, ok := ix.events[id]
	return ev, ok
}
