package simulator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

func ok(value any) Thunk {
	return func(context.Context) (any, error) { return value, nil }
}

func counting(n *atomic.Int64) Thunk {
	return func(context.Context) (any, error) {
		n.Add(1)
		return "ok", nil
	}
}

func TestDefaultState(t *testing.T) {
	s := New()

	assert.Equal(t, int64(0), s.Latency())
	assert.False(t, s.IsNetworkErrorEnabled())
	assert.False(t, s.IsMethodTimedOut("getAccount"))
	_, limited := s.RateLimitRemaining()
	assert.False(t, limited)

	got, err := s.Apply(context.Background(), "getAccount", ok("value"))
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestSimulateLatency(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(30))
	assert.Equal(t, int64(30), s.Latency())

	start := time.Now()
	_, err := s.Apply(context.Background(), "getLedgerInfo", ok(nil))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSimulateLatency_Overwrites(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(500))
	require.NoError(t, s.SimulateLatency(0))
	assert.Equal(t, int64(0), s.Latency())
}

func TestSimulateLatency_RejectsNegative(t *testing.T) {
	s := New()
	err := s.SimulateLatency(-1)
	require.Error(t, err)
	assert.True(t, rpcerr.IsValidation(err))

	re, _ := rpcerr.As(err)
	assert.Equal(t, "latency", re.Argument())
	assert.Equal(t, int64(0), s.Latency())
}

func TestSimulateTimeout(t *testing.T) {
	s := New()
	s.SimulateTimeout("getTransactionByHash")

	var n atomic.Int64
	_, err := s.Apply(context.Background(), "getTransactionByHash", counting(&n))
	require.Error(t, err)
	assert.True(t, rpcerr.IsTimeout(err))
	assert.Contains(t, err.Error(), "Request timed out")
	assert.Equal(t, int64(0), n.Load())

	_, err = s.Apply(context.Background(), "getAccount", counting(&n))
	require.NoError(t, err, "other methods are unaffected")

	s.ClearTimeout("getTransactionByHash")
	_, err = s.Apply(context.Background(), "getTransactionByHash", counting(&n))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n.Load())
}

func TestSimulateNetworkError(t *testing.T) {
	s := New()
	s.SimulateNetworkError()
	assert.True(t, s.IsNetworkErrorEnabled())

	_, err := s.Apply(context.Background(), "submitTransaction", ok(nil))
	require.Error(t, err)
	assert.True(t, rpcerr.IsNetwork(err))
	assert.Contains(t, err.Error(), "Network error")

	s.ClearNetworkError()
	_, err = s.Apply(context.Background(), "submitTransaction", ok(nil))
	assert.NoError(t, err)
}

func TestSimulateRateLimit(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateRateLimit(3))

	for i := 0; i < 3; i++ {
		_, err := s.Apply(context.Background(), "getAccount", ok(nil))
		require.NoError(t, err, "call %d", i+1)
	}
	remaining, limited := s.RateLimitRemaining()
	assert.True(t, limited)
	assert.Equal(t, int64(0), remaining)

	_, err := s.Apply(context.Background(), "getLedgerInfo", ok(nil))
	require.Error(t, err, "budget is shared across methods")
	assert.True(t, rpcerr.IsRateLimited(err))
	assert.Contains(t, err.Error(), "Rate limited")

	remaining, _ = s.RateLimitRemaining()
	assert.Equal(t, int64(0), remaining, "rejections do not go negative")
}

func TestSimulateRateLimit_RejectsNonPositive(t *testing.T) {
	s := New()
	for _, n := range []int64{0, -5} {
		err := s.SimulateRateLimit(n)
		require.Error(t, err)
		re, _ := rpcerr.As(err)
		assert.Equal(t, "maxCalls", re.Argument())
	}
	_, limited := s.RateLimitRemaining()
	assert.False(t, limited)
}

func TestSimulateRateLimit_FailingThunkSpendsBudget(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateRateLimit(1))

	boom := errors.New("boom")
	_, err := s.Apply(context.Background(), "m", func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Apply(context.Background(), "m", ok(nil))
	assert.True(t, rpcerr.IsRateLimited(err))
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*Simulator)
		method string
		want   rpcerr.Kind
		spent  bool
	}{
		{
			name: "network beats timeout and rate limit",
			setup: func(s *Simulator) {
				s.SimulateNetworkError()
				s.SimulateTimeout("m")
				_ = s.SimulateRateLimit(1)
			},
			method: "m",
			want:   rpcerr.KindNetwork,
		},
		{
			name: "timeout beats rate limit",
			setup: func(s *Simulator) {
				s.SimulateTimeout("m")
				_ = s.SimulateRateLimit(1)
			},
			method: "m",
			want:   rpcerr.KindTimeout,
		},
		{
			name: "rate limit applies to methods without timeout",
			setup: func(s *Simulator) {
				s.SimulateTimeout("other")
				_ = s.SimulateRateLimit(1)
			},
			method: "m",
			spent:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			tt.setup(s)

			_, err := s.Apply(context.Background(), tt.method, ok(nil))
			if tt.want == 0 {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.want, rpcerr.KindOf(err))
			}

			remaining, _ := s.RateLimitRemaining()
			if tt.spent {
				assert.Equal(t, int64(0), remaining)
			} else {
				assert.Equal(t, int64(1), remaining, "rejected calls do not spend budget")
			}
		})
	}
}

func TestFailuresSkipLatency(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(10_000))
	s.SimulateNetworkError()

	start := time.Now()
	_, err := s.Apply(context.Background(), "m", ok(nil))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestApply_ContextCanceledDuringLatency(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(10_000))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var n atomic.Int64
	_, err := s.Apply(ctx, "m", counting(&n))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(0), n.Load())
}

func TestResetSimulation(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(100))
	s.SimulateTimeout("a")
	s.SimulateTimeout("b")
	require.NoError(t, s.SimulateRateLimit(2))
	s.SimulateNetworkError()

	s.ResetSimulation()

	assert.Equal(t, State{}, s.Snapshot())
	_, err := s.Apply(context.Background(), "a", ok(nil))
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.SimulateLatency(25))
	s.SimulateTimeout("waitForTransaction")
	s.SimulateTimeout("getAccount")
	require.NoError(t, s.SimulateRateLimit(4))

	st := s.Snapshot()
	assert.Equal(t, int64(25), st.LatencyMs)
	assert.Equal(t, []string{"getAccount", "waitForTransaction"}, st.TimedOut)
	require.NotNil(t, st.RateLimit)
	assert.Equal(t, int64(4), *st.RateLimit)

	*st.RateLimit = 99
	remaining, _ := s.RateLimitRemaining()
	assert.Equal(t, int64(4), remaining, "snapshot is a copy")
}

func TestRateLimit_ConcurrentNoDoubleSpend(t *testing.T) {
	const budget = 50
	s := New()
	require.NoError(t, s.SimulateRateLimit(budget))

	var (
		wg       sync.WaitGroup
		admitted atomic.Int64
		rejected atomic.Int64
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Apply(context.Background(), "m", ok(nil))
			if err == nil {
				admitted.Add(1)
			} else if rpcerr.IsRateLimited(err) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(budget), admitted.Load())
	assert.Equal(t, int64(150), rejected.Load())
}
