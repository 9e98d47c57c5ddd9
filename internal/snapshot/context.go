// Package snapshot holds the latest snapshot pushed by the live feed.
// Snapshots replace each other wholesale; only the newest one matters
// to any consumer, so the context is a single guarded slot with a
// generation counter.
package snapshot

import (
	"sync"
	"time"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Context holds the current snapshot state.
type Context struct {
	mu         sync.RWMutex
	snap       core.Snapshot
	generation uint64
	receivedAt time.Time
}

// NewContext creates an empty snapshot context at generation zero.
func NewContext() *Context {
	return &Context{}
}

// Set replaces the current snapshot and returns the new generation.
func (c *Context) Set(s core.Snapshot) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
	c.generation++
	c.receivedAt = time.Now()
	return c.generation
}

// Get returns the current snapshot and its generation. Generation zero
// means nothing has arrived yet.
func (c *Context) Get() (core.Snapshot, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.generation
}

// Generation returns the current generation without the snapshot.
func (c *Context) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// ReceivedAt returns when the current snapshot arrived.
func (c *Context) ReceivedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.receivedAt
}
