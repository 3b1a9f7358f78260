package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_StartAt(t *testing.T) {
	c := NewClockAt(100)

	assert.Equal(t, int64(100), c.Current())
	assert.Equal(t, int64(101), c.Next())
}

func TestClock_ConcurrentUniqueness(t *testing.T) {
	c := NewClock()

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	results := make([][]int64, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			seqs := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				seqs = append(seqs, c.Next())
			}
			results[idx] = seqs
		}(g)
	}
	wg.Wait()

	seen := make(map[int64]bool, goroutines*perGoroutine)
	for _, seqs := range results {
		for _, s := range seqs {
			require.False(t, seen[s], "duplicate seq %d", s)
			seen[s] = true
		}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), c.Current())
}
