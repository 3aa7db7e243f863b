package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInflightSet_AcquireRelease(t *testing.T) {
	s := NewInflightSet()

	assert.True(t, s.TryAcquire("a"))
	assert.False(t, s.TryAcquire("a"))
	assert.True(t, s.TryAcquire("b"))
	assert.Equal(t, 2, s.Len())

	s.Release("a")
	assert.True(t, s.TryAcquire("a"))

	// Releasing an unowned id is a no-op.
	s.Release("never-acquired")
	assert.Equal(t, 2, s.Len())
}

func TestInflightSet_Concurrent(t *testing.T) {
	s := NewInflightSet()

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquire("brief") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, 1, s.Len())
}
