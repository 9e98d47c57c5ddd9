// Package monitor periodically reports session health: supervisor
// state, live marker count and reconcile timing, to the log, a status
// file and the telemetry sink.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shiftpulse/pulsemap/internal/influx"
	"github.com/shiftpulse/pulsemap/internal/logging"
	"github.com/shiftpulse/pulsemap/internal/snapshot"
	"github.com/shiftpulse/pulsemap/internal/supervisor"
)

// Source is the supervisor surface the monitor reads.
type Source interface {
	State() supervisor.State
	MarkerCount() int
	LastPassDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Snapshots  *snapshot.Context
	Source     Source
	// Influx is optional; nil disables telemetry writes.
	Influx *influx.Manager
	// StatusDir receives status.txt. Empty disables the file.
	StatusDir string
}

// Status is the serialized session health report.
type Status struct {
	Time            time.Time `json:"time"`
	State           string    `json:"state"`
	MarkerCount     int       `json:"markerCount"`
	Generation      uint64    `json:"generation"`
	LastReconcileMs float64   `json:"lastReconcileMs"`
	SnapshotAge     string    `json:"snapshotAge"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot builds the current status report.
func (s *Service) Snapshot() Status {
	gen := uint64(0)
	age := time.Duration(0)
	if s.deps.Snapshots != nil {
		gen = s.deps.Snapshots.Generation()
		if gen > 0 {
			age = time.Since(s.deps.Snapshots.ReceivedAt())
		}
	}
	return Status{
		Time:            time.Now(),
		State:           s.deps.Source.State().String(),
		MarkerCount:     s.deps.Source.MarkerCount(),
		Generation:      gen,
		LastReconcileMs: float64(s.deps.Source.LastPassDuration().Microseconds()) / 1000.0,
		SnapshotAge:     age.Truncate(time.Millisecond).String(),
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			}
			defer statusFile.Close()
		}

		ticker := time.NewTicker(1000 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				status := s.Snapshot()

				logger.Debug("session status",
					"state", status.State,
					"markers", status.MarkerCount,
					"generation", status.Generation,
					"reconcileMs", status.LastReconcileMs,
				)

				if statusFile != nil {
					out, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						out = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(out, '\n'))
				}

				if s.deps.Influx != nil {
					err := s.deps.Influx.WritePerformance(
						context.Background(),
						status.State,
						status.MarkerCount,
						status.Generation,
						s.deps.Source.LastPassDuration(),
					)
					if err != nil {
						logger.Error("Error writing performance point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
