package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescer_RunsSubmittedValue(t *testing.T) {
	var mu sync.Mutex
	var got []int
	c := NewCoalescer(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	c.Submit(42)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, 42, got[0])
}

func TestCoalescer_LatestWins(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var got []int

	first := true
	c := NewCoalescer(func(v int) {
		if first {
			first = false
			close(started)
			<-release
		}
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	c.Submit(1)
	<-started
	// These arrive mid-run; only the newest may survive.
	c.Submit(2)
	c.Submit(3)
	close(release)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 3}, got)
}

func TestCoalescer_SerialExecution(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	c := NewCoalescer(func(v int) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		c.Submit(i)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "runs must never overlap")
}
