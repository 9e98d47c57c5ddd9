package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

func TestContext_SetAndGet(t *testing.T) {
	c := NewContext()

	snap, gen := c.Get()
	assert.Zero(t, gen)
	assert.True(t, snap.Empty())

	gen = c.Set(core.Snapshot{Events: []core.Event{{ID: "e1"}}})
	assert.Equal(t, uint64(1), gen)

	snap, gen = c.Get()
	assert.Equal(t, uint64(1), gen)
	assert.Len(t, snap.Events, 1)
	assert.False(t, c.ReceivedAt().IsZero())
}

func TestContext_GenerationMonotonic(t *testing.T) {
	c := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(core.Snapshot{})
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), c.Generation())
}
