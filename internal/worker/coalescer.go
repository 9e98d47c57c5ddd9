// Package worker provides the coalescing apply loop that serializes
// reconciliation. A snapshot arriving while a pass is running does not
// interrupt it; one fresh pass runs afterwards with the newest value,
// and intermediate values are dropped.
package worker

import "sync"

// Coalescer runs a function one invocation at a time, keeping only the
// newest pending value. Submit never blocks on the running function.
type Coalescer[T any] struct {
	mu      sync.Mutex
	pending *T
	running bool
	idle    sync.WaitGroup

	run func(T)
}

// NewCoalescer creates a coalescer around run.
func NewCoalescer[T any](run func(T)) *Coalescer[T] {
	return &Coalescer[T]{run: run}
}

// Submit schedules v. If a run is in flight, v replaces any value
// already waiting; otherwise a drain goroutine starts.
func (c *Coalescer[T]) Submit(v T) {
	c.mu.Lock()
	c.pending = &v
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.idle.Add(1)
	c.mu.Unlock()
	go c.drain()
}

func (c *Coalescer[T]) drain() {
	defer c.idle.Done()
	for {
		c.mu.Lock()
		v := c.pending
		c.pending = nil
		if v == nil {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.run(*v)
	}
}

// Wait blocks until no run is in flight and nothing is pending.
func (c *Coalescer[T]) Wait() {
	c.idle.Wait()
}
