// Package simulator injects scripted network pathologies into calls.
//
// # Precedence
//
// When several conditions are active at once, only the highest-priority
// one takes effect:
//
//	network error > timed-out method > rate limit > latency > success
//
// A call rejected by a higher-priority condition does not wait out the
// latency and does not spend rate-limit budget. Rejections return
// immediately without invoking the thunk.
//
// # Rate-limit budget
//
// The budget is global across methods. A call spends one unit when it is
// admitted (passes the three failure checks), whether or not its thunk later
// fails. Admission and decrement happen under one lock, so concurrent
// callers never double-spend the budget.
package simulator

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

// Thunk is the deferred work a simulated call performs once admitted.
type Thunk func(ctx context.Context) (any, error)

// State is a snapshot of the active simulated conditions.
type State struct {
	LatencyMs    int64    `json:"latency_ms" yaml:"latency_ms"`
	TimedOut     []string `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	RateLimit    *int64   `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	NetworkError bool     `json:"network_error" yaml:"network_error"`
}

// Simulator holds simulated-condition state. Safe for concurrent use.
type Simulator struct {
	mu           sync.Mutex
	latency      time.Duration
	timedOut     map[string]struct{}
	rateLimit    *int64
	networkError bool
	logger       *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used to report injected failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a simulator in the default state: no latency, no timeouts,
// no rate limit, network errors disabled.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		timedOut: make(map[string]struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimulateLatency delays every admitted call by at least ms milliseconds.
// Repeated calls overwrite the previous value; 0 disables latency.
func (s *Simulator) SimulateLatency(ms int64) error {
	if ms < 0 {
		return rpcerr.InvalidArgument("latency", "latency must be a non-negative number of milliseconds")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = time.Duration(ms) * time.Millisecond
	return nil
}

// SimulateTimeout makes every call to method fail with a timeout.
func (s *Simulator) SimulateTimeout(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timedOut[method] = struct{}{}
}

// ClearTimeout removes method from the timed-out set.
func (s *Simulator) ClearTimeout(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timedOut, method)
}

// SimulateRateLimit sets a global budget of maxCalls admitted calls.
// Further calls fail with a rate-limit error until the simulation is reset.
func (s *Simulator) SimulateRateLimit(maxCalls int64) error {
	if maxCalls <= 0 {
		return rpcerr.InvalidArgument("maxCalls", "rate limit must be a positive number of calls")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := maxCalls
	s.rateLimit = &remaining
	return nil
}

// SimulateNetworkError makes every call fail with a network error.
func (s *Simulator) SimulateNetworkError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkError = true
}

// ClearNetworkError disables the simulated network error.
func (s *Simulator) ClearNetworkError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkError = false
}

// ResetSimulation restores the default state.
func (s *Simulator) ResetSimulation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = 0
	s.timedOut = make(map[string]struct{})
	s.rateLimit = nil
	s.networkError = false
}

// Latency returns the configured latency in milliseconds.
func (s *Simulator) Latency() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.Milliseconds()
}

// IsMethodTimedOut reports whether calls to method time out.
func (s *Simulator) IsMethodTimedOut(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timedOut[method]
	return ok
}

// RateLimitRemaining returns the remaining budget and true, or 0 and false
// when no rate limit is configured. Reading does not spend budget.
func (s *Simulator) RateLimitRemaining() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateLimit == nil {
		return 0, false
	}
	return *s.rateLimit, true
}

// IsNetworkErrorEnabled reports whether calls fail with a network error.
func (s *Simulator) IsNetworkErrorEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.networkError
}

// Snapshot returns a copy of the current state. TimedOut is sorted.
func (s *Simulator) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		LatencyMs:    s.latency.Milliseconds(),
		NetworkError: s.networkError,
	}
	for m := range s.timedOut {
		st.TimedOut = append(st.TimedOut, m)
	}
	sort.Strings(st.TimedOut)
	if s.rateLimit != nil {
		remaining := *s.rateLimit
		st.RateLimit = &remaining
	}
	return st
}

// Apply runs thunk for method under the simulated conditions.
//
// Failures are returned as *rpcerr.Error without invoking thunk. On the
// success branch Apply waits at least the configured latency, then returns
// whatever thunk returns. If ctx ends while waiting, Apply returns ctx.Err()
// and thunk is not invoked.
func (s *Simulator) Apply(ctx context.Context, method string, thunk Thunk) (any, error) {
	latency, err := s.admit(method)
	if err != nil {
		s.logger.Debug("simulated failure",
			"method", method,
			"code", string(err.Code),
		)
		return nil, err
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return thunk(ctx)
}

// admit evaluates the precedence rules and spends budget atomically.
func (s *Simulator) admit(method string) (time.Duration, *rpcerr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.networkError {
		return 0, rpcerr.Network(method)
	}
	if _, ok := s.timedOut[method]; ok {
		return 0, rpcerr.Timeout(method)
	}
	if s.rateLimit != nil {
		if *s.rateLimit <= 0 {
			return 0, rpcerr.RateLimited(method)
		}
		*s.rateLimit--
	}
	return s.latency, nil
}
