// Package registry owns the set of live marker handles and reconciles
// it against each incoming snapshot. It is the only component that
// creates or releases marker handles; after every pass the live handle
// set is exactly the image of the snapshot's resolvable entities.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/shiftpulse/pulsemap/internal/classify"
	"github.com/shiftpulse/pulsemap/internal/geo"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

// popupOffset is the pixel offset popups render at above their marker.
const popupOffset = 24

// FocusFunc receives the record and event behind a clicked person
// marker. The registry never interprets anything about the call.
type FocusFunc func(rec core.AttendanceRecord, ev core.Event)

// markerSpec is the desired state for one marker key.
type markerSpec struct {
	coord     core.Coordinate
	el        mapbackend.MarkerElement
	popupHTML string
}

// Registry reconciles marker handles against snapshots.
type Registry struct {
	m             mapbackend.Map
	defaultCenter core.Coordinate
	onFocus       FocusFunc
	logger        *slog.Logger

	handles *handleStore
	index   *snapshotIndex

	// mu serializes reconciliation passes and guards the derived
	// coordinate set.
	mu       sync.Mutex
	coords   []core.Coordinate
	lastPass time.Duration

	created metric.Int64Counter
	removed metric.Int64Counter
	passes  metric.Int64Counter
}

// New creates a registry bound to a live map handle.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(m mapbackend.Map, defaultCenter core.Coordinate, onFocus FocusFunc, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		m:             m,
		defaultCenter: defaultCenter,
		onFocus:       onFocus,
		logger:        logger,
		handles:       newHandleStore(),
		index:         newSnapshotIndex(),
	}

	mt := meter()

	var err error
	r.created, err = mt.Int64Counter(
		"registry.markers.created",
		metric.WithDescription("Total marker handles created"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}
	r.removed, err = mt.Int64Counter(
		"registry.markers.removed",
		metric.WithDescription("Total marker handles released"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}
	r.passes, err = mt.Int64Counter(
		"registry.reconcile.passes",
		metric.WithDescription("Total reconciliation passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating passes counter: %w", err)
	}

	live, err := mt.Int64ObservableGauge(
		"registry.markers.live",
		metric.WithDescription("Current number of live marker handles"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating live gauge: %w", err)
	}
	_, err = mt.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(live, int64(r.handles.Len()))
			return nil
		},
		live,
	)
	if err != nil {
		return nil, fmt.Errorf("registering live gauge callback: %w", err)
	}

	return r, nil
}

// Reconcile brings the live handle set in line with the snapshot.
// receivedAt is when the snapshot arrived; derived content like the
// placeholder popup is stamped with it, never with the wall clock, so
// a repeated pass over the same snapshot is byte-identical.
// Runs to completion; callers must not interleave passes.
func (r *Registry) Reconcile(snap core.Snapshot, receivedAt time.Time) {
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.index.Rebuild(snap)
	desired := r.buildSpecs(snap, receivedAt)

	// Release every handle whose key is gone from the snapshot.
	for _, k := range r.handles.Keys() {
		if _, ok := desired[k]; ok {
			continue
		}
		if h, ok := r.handles.Get(k); ok {
			r.release(k, h)
		}
		r.handles.Delete(k)
	}

	// Create markers for new keys; replace markers for surviving keys.
	// Replacement is create-then-discard-old, cheap at tens of markers.
	for k, spec := range desired {
		old, existed := r.handles.Get(k)
		r.handles.Set(k, r.create(spec))
		if existed {
			r.release(k, old)
		}
	}

	coords := make([]core.Coordinate, 0, len(desired))
	for _, spec := range desired {
		coords = append(coords, spec.coord)
	}
	r.coords = coords

	r.lastPass = time.Since(start)
	r.passes.Add(context.Background(), 1)

	r.logger.Debug("reconciled snapshot",
		"events", len(snap.Events),
		"markers", len(desired),
		"duration", r.lastPass,
	)
}

// buildSpecs computes the desired marker set implied by a snapshot.
// Entities without a resolvable coordinate are silently skipped;
// partial location data is expected and common.
func (r *Registry) buildSpecs(snap core.Snapshot, receivedAt time.Time) map[Key]markerSpec {
	specs := make(map[Key]markerSpec)

	if snap.Empty() {
		// An empty map reads as a failure to the operator; a single
		// placeholder shows the map itself is alive.
		specs[placeholderKey] = markerSpec{
			coord: r.defaultCenter,
			el: mapbackend.MarkerElement{
				Kind:  mapbackend.MarkerPlaceholder,
				Color: classify.VenueStyle.Color,
				Label: "No events",
			},
			popupHTML: placeholderPopupHTML(receivedAt),
		}
		return specs
	}

	for _, ev := range snap.Events {
		if c, err := geo.ResolveVenue(ev); err == nil {
			specs[VenueKey(ev.ID)] = markerSpec{
				coord: c,
				el: mapbackend.MarkerElement{
					Kind:  mapbackend.MarkerVenue,
					Color: classify.VenueStyle.Color,
					Label: ev.Name,
				},
				popupHTML: venuePopupHTML(ev),
			}
		}

		for _, rec := range ev.Attendance {
			c, err := geo.ResolvePerson(rec)
			if err != nil {
				continue
			}
			cls := classify.Classify(rec)
			key := PersonKey(ev.ID, rec.PersonID)
			specs[key] = markerSpec{
				coord: c,
				el: mapbackend.MarkerElement{
					Kind:    mapbackend.MarkerPerson,
					Color:   cls.Style.Color,
					Pulse:   cls.Style.Pulse,
					Label:   rec.Name,
					OnClick: func() { r.focus(key) },
				},
				popupHTML: personPopupHTML(rec, ev),
			}
		}
	}
	return specs
}

// create builds a positioned, popup-carrying marker and attaches it.
func (r *Registry) create(spec markerSpec) mapbackend.Marker {
	mk := r.m.AddMarker(spec.el)
	mk.SetLngLat(spec.coord)
	if spec.popupHTML != "" {
		p := r.m.AddPopup(mapbackend.PopupOptions{Offset: popupOffset})
		p.SetHTML(spec.popupHTML)
		mk.SetPopup(p)
	}
	mk.AddTo()
	r.created.Add(context.Background(), 1)
	return mk
}

// release removes a handle, swallowing a double release.
func (r *Registry) release(k Key, h mapbackend.Marker) {
	if err := h.Remove(); err != nil && !errors.Is(err, mapbackend.ErrAlreadyRemoved) {
		r.logger.Debug("marker release failed", "eventId", k.EventID, "personId", k.PersonID, "error", err)
	}
	r.removed.Add(context.Background(), 1)
}

// focus routes a person-marker click to the host's callback with the
// record and event from the latest snapshot.
func (r *Registry) focus(k Key) {
	if r.onFocus == nil {
		return
	}
	rec, ev, ok := r.index.Lookup(k)
	if !ok {
		return
	}
	r.onFocus(rec, ev)
}

// Coordinates returns the resolvable coordinate set from the latest
// pass, for the viewport controller.
func (r *Registry) Coordinates() []core.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Coordinate{}, r.coords...)
}

// Len returns the number of live marker handles.
func (r *Registry) Len() int {
	return r.handles.Len()
}

// LastPassDuration returns how long the latest pass took.
func (r *Registry) LastPassDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPass
}

// Teardown releases every live handle. Must run when the component is
// dismantled; an unreleased handle is a resource leak.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.handles.Keys() {
		if h, ok := r.handles.Get(k); ok {
			r.release(k, h)
		}
	}
	r.handles.Reset()
	r.coords = nil
}
