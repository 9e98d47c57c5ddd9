// Package supervisor monitors map-backend health and switches the pulse
// map between live spatial rendering and the tabular fallback. Once a
// session degrades it stays degraded; only a full restart brings the
// map back.
package supervisor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shiftpulse/pulsemap/internal/fallback"
	"github.com/shiftpulse/pulsemap/internal/mapbackend"
	"github.com/shiftpulse/pulsemap/internal/registry"
	"github.com/shiftpulse/pulsemap/internal/snapshot"
	"github.com/shiftpulse/pulsemap/internal/viewport"
	"github.com/shiftpulse/pulsemap/internal/worker"
	"github.com/shiftpulse/pulsemap/pkg/core"
)

// State is the backend lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateSdkReady
	StateMapLoaded
	StateFatalError
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSdkReady:
		return "sdk_ready"
	case StateMapLoaded:
		return "map_loaded"
	case StateFatalError:
		return "fatal_error"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Dependencies holds everything the supervisor wires together.
type Dependencies struct {
	Capability mapbackend.Capability
	Options    mapbackend.MapOptions
	Snapshots  *snapshot.Context
	OnFocus    registry.FocusFunc
	Sink       fallback.Sink
	Logger     *slog.Logger
}

// Supervisor drives the state machine and routes snapshots to whichever
// presentation is active.
type Supervisor struct {
	deps      Dependencies
	presenter *fallback.Presenter
	apply     *worker.Coalescer[core.Snapshot]

	mu    sync.Mutex
	state State
	m     mapbackend.Map
	reg   *registry.Registry
	vp    *viewport.Controller
}

// New creates a supervisor in the Uninitialized state.
func New(deps Dependencies) *Supervisor {
	s := &Supervisor{
		deps:      deps,
		presenter: fallback.New(deps.Sink, deps.OnFocus, deps.Logger),
		state:     StateUninitialized,
	}
	s.apply = worker.NewCoalescer(s.applySnapshot)
	return s
}

// Start attempts backend construction. Without an access token no
// backend attempt is made at all and the session goes straight to
// fallback; a construction failure does the same.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return
	}

	if s.deps.Options.AccessToken == "" {
		s.deps.Logger.Warn("no map access token configured, using list view")
		s.enterFallbackLocked()
		return
	}

	m, err := s.deps.Capability.NewMap(s.deps.Options)
	if err != nil {
		s.deps.Logger.Error("map backend construction failed", "error", err)
		s.enterFallbackLocked()
		return
	}

	reg, err := registry.New(m, s.deps.Options.Center, s.deps.OnFocus, s.deps.Logger)
	if err != nil {
		s.deps.Logger.Error("marker registry setup failed", "error", err)
		_ = m.Remove()
		s.enterFallbackLocked()
		return
	}

	s.m = m
	s.reg = reg
	s.vp = viewport.New(m, reg)

	m.On(mapbackend.NotifLoad, s.handleNotification)
	m.On(mapbackend.NotifError, s.handleNotification)
	m.On(mapbackend.NotifStyleImageMissing, s.handleNotification)

	s.state = StateSdkReady
	s.deps.Logger.Info("map backend constructed, waiting for load")
}

// Apply accepts a snapshot push. The snapshot always lands in the
// context; what happens next depends on the state: reconcile when the
// map is live, re-render the list when degraded, or nothing yet (the
// latest snapshot is applied when the map finishes loading).
func (s *Supervisor) Apply(snap core.Snapshot) {
	gen := s.deps.Snapshots.Set(snap)

	switch s.State() {
	case StateMapLoaded:
		s.apply.Submit(snap)
	case StateFallback:
		if err := s.presenter.Present(snap); err != nil {
			s.deps.Logger.Error("fallback render failed", "error", err)
		}
	default:
		s.deps.Logger.Debug("snapshot deferred until map load", "generation", gen)
	}
}

// applySnapshot is the coalesced reconcile pass: markers first, then
// the camera fit over the resulting coordinate set.
func (s *Supervisor) applySnapshot(snap core.Snapshot) {
	s.mu.Lock()
	reg, vp, state := s.reg, s.vp, s.state
	s.mu.Unlock()

	if state != StateMapLoaded || reg == nil {
		return
	}
	reg.Reconcile(snap, s.deps.Snapshots.ReceivedAt())
	vp.Fit(reg.Coordinates())
}

func (s *Supervisor) handleNotification(n mapbackend.Notification) {
	switch n.Kind {
	case mapbackend.NotifLoad:
		s.mu.Lock()
		if s.state != StateSdkReady {
			s.mu.Unlock()
			return
		}
		s.state = StateMapLoaded
		s.mu.Unlock()

		s.deps.Logger.Info("map loaded")
		if snap, gen := s.deps.Snapshots.Get(); gen > 0 {
			s.apply.Submit(snap)
		}

	case mapbackend.NotifStyleImageMissing:
		// Decorative imagery only; never a state transition.
		s.deps.Logger.Debug("map style image missing", "message", n.Message)

	case mapbackend.NotifError:
		if !mapbackend.IsFatal(n.Message) {
			s.deps.Logger.Warn("non-fatal map error", "message", n.Message)
			return
		}
		s.mu.Lock()
		if s.state != StateSdkReady && s.state != StateMapLoaded {
			s.mu.Unlock()
			return
		}
		s.deps.Logger.Error("fatal map error, degrading to list view", "message", n.Message)
		s.state = StateFatalError
		s.enterFallbackLocked()
		s.mu.Unlock()
	}
}

// enterFallbackLocked tears the spatial surface down and renders the
// list from the latest snapshot. Fallback is terminal for the session.
func (s *Supervisor) enterFallbackLocked() {
	if s.reg != nil {
		s.reg.Teardown()
	}
	if s.m != nil {
		_ = s.m.Remove()
	}
	s.state = StateFallback

	if snap, gen := s.deps.Snapshots.Get(); gen > 0 {
		if err := s.presenter.Present(snap); err != nil {
			s.deps.Logger.Error("fallback render failed", "error", err)
		}
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkerCount returns the number of live marker handles.
func (s *Supervisor) MarkerCount() int {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return 0
	}
	return reg.Len()
}

// LastPassDuration returns the latest reconcile pass duration.
func (s *Supervisor) LastPassDuration() time.Duration {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg == nil {
		return 0
	}
	return reg.LastPassDuration()
}

// ZoomIn steps the camera in. Ignored unless the map is live.
func (s *Supervisor) ZoomIn() {
	if vp := s.controller(); vp != nil {
		vp.ZoomIn()
	}
}

// ZoomOut steps the camera out. Ignored unless the map is live.
func (s *Supervisor) ZoomOut() {
	if vp := s.controller(); vp != nil {
		vp.ZoomOut()
	}
}

// Recenter refits the camera over the current snapshot's coordinates.
func (s *Supervisor) Recenter() {
	if vp := s.controller(); vp != nil {
		vp.Recenter()
	}
}

func (s *Supervisor) controller() *viewport.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateMapLoaded {
		return nil
	}
	return s.vp
}

// Close waits for any in-flight pass and releases every handle. After
// Close the supervisor is unusable.
func (s *Supervisor) Close() {
	s.apply.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reg != nil {
		s.reg.Teardown()
	}
	if s.m != nil {
		_ = s.m.Remove()
	}
	s.state = StateFallback
}
