package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock_StartsAtStart(t *testing.T) {
	clock := NewStepClock(1_000, 5)
	assert.Equal(t, int64(1_000), clock.Current())
}

func TestStepClock_ReadsAdvanceByStep(t *testing.T) {
	clock := NewStepClock(1_000, 5)

	assert.Equal(t, int64(1_000), clock.NowMillis())
	assert.Equal(t, int64(1_005), clock.NowMillis())
	assert.Equal(t, int64(1_010), clock.NowMillis())
	assert.Equal(t, int64(1_015), clock.Current())
}

func TestStepClock_ZeroStepFreezes(t *testing.T) {
	clock := NewStepClock(42, 0)
	assert.Equal(t, int64(42), clock.NowMillis())
	assert.Equal(t, int64(42), clock.NowMillis())

	clock.Advance(8)
	assert.Equal(t, int64(50), clock.NowMillis())
}

func TestStepClock_SetBackwards(t *testing.T) {
	clock := NewStepClock(500, 1)
	clock.NowMillis()

	clock.Set(100)
	assert.Equal(t, int64(100), clock.NowMillis())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(0, 1)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]int64, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]int64, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = clock.NowMillis()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := range results {
		for _, v := range results[i] {
			require.False(t, seen[v], "duplicate value %d", v)
			seen[v] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}

func TestSeedPointer(t *testing.T) {
	a, b := Seed(42), Seed(42)
	assert.Equal(t, *a, *b)
	assert.NotSame(t, a, b)
}
