package testutil

import "sync"

// StepClock is a deterministic millisecond clock for tests.
//
// Every read returns the current value and then advances it by Step, so a
// sequence of tracked calls gets distinct, predictable timestamps. Set and
// Advance move it explicitly; a Step of 0 freezes it between moves.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewStepClock creates a clock starting at start that advances by step on
// every read.
func NewStepClock(start, step int64) *StepClock {
	return &StepClock{now: start, step: step}
}

// NowMillis returns the current time and advances it by the step.
func (c *StepClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now += c.step
	return now
}

// Current returns the next value NowMillis would return, without advancing.
func (c *StepClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to ms. Moving backwards is allowed so tests can
// simulate a wall-clock step.
func (c *StepClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ms
}

// Advance moves the clock forward by ms.
func (c *StepClock) Advance(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ms
}
