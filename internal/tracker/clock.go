package tracker

import "time"

// Clock supplies call timestamps in milliseconds since the Unix epoch.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMillis returns time.Now in milliseconds.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

// NowMillis calls f.
func (f ClockFunc) NowMillis() int64 {
	return f()
}
