// Package tracker records every call made through the mock client and
// provides assertions over the recorded history.
//
// Records carry two orderings: Seq, a logical clock that is strictly
// increasing across all methods, and Timestamp, wall-clock milliseconds that
// never decrease even if the underlying clock steps backwards.
package tracker

import (
	"fmt"
	"strings"
	"sync"
)

// CallRecord is one recorded invocation. Records are immutable once
// recorded; readers receive copies.
type CallRecord struct {
	// Seq is the 1-based global recording order.
	Seq int64

	// Method is the invoked method name.
	Method string

	// Args are the call arguments in order.
	Args []any

	// Result is the value returned to the caller, nil on failure.
	Result any

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64

	// Err is the error returned to the caller, if any.
	Err error
}

// Failed reports whether the call returned an error.
func (r CallRecord) Failed() bool {
	return r.Err != nil
}

// String renders the record as method(arg, ...), with the error if any.
func (r CallRecord) String() string {
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	s := fmt.Sprintf("%s(%s)", r.Method, strings.Join(parts, ", "))
	if r.Err != nil {
		s += " -> error: " + r.Err.Error()
	}
	return s
}

// Tracker is the single writer of call records.
// Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	clock    Clock
	seq      int64
	lastTime int64
	calls    []CallRecord
	byMethod map[string][]int
}

// New creates a tracker using clock for timestamps. A nil clock selects
// SystemClock.
func New(clock Clock) *Tracker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Tracker{
		clock:    clock,
		byMethod: make(map[string][]int),
	}
}

// RecordCall appends a record for method with args and an optional error.
func (t *Tracker) RecordCall(method string, args []any, err error) CallRecord {
	return t.RecordResult(method, args, nil, err)
}

// RecordResult is RecordCall carrying the value returned to the caller.
func (t *Tracker) RecordResult(method string, args []any, result any, err error) CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.NowMillis()
	if now < t.lastTime {
		now = t.lastTime
	}
	t.lastTime = now
	t.seq++

	rec := CallRecord{
		Seq:       t.seq,
		Method:    method,
		Args:      append([]any{}, args...),
		Result:    result,
		Timestamp: now,
		Err:       err,
	}
	t.byMethod[method] = append(t.byMethod[method], len(t.calls))
	t.calls = append(t.calls, rec)
	return copyRecord(rec)
}

// Calls returns the records for method, oldest first.
func (t *Tracker) Calls(method string) []CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.byMethod[method]
	out := make([]CallRecord, len(idx))
	for i, j := range idx {
		out[i] = copyRecord(t.calls[j])
	}
	return out
}

// CallCount returns the number of records for method.
func (t *Tracker) CallCount(method string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byMethod[method])
}

// AllCalls returns every record across all methods, oldest first.
func (t *Tracker) AllCalls() []CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]CallRecord, len(t.calls))
	for i, rec := range t.calls {
		out[i] = copyRecord(rec)
	}
	return out
}

// ClearCalls drops all recorded state. Seq restarts at 1; timestamps keep
// their non-decreasing floor.
func (t *Tracker) ClearCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.byMethod = make(map[string][]int)
	t.seq = 0
}

func copyRecord(r CallRecord) CallRecord {
	r.Args = append([]any{}, r.Args...)
	return r
}
