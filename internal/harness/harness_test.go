package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rpcsim/internal/faker"
	"github.com/roach88/rpcsim/internal/mockclient"
	"github.com/roach88/rpcsim/internal/rpcerr"
	"github.com/roach88/rpcsim/internal/testutil"
)

func newHarness(t *testing.T, seed int64) *Harness {
	t.Helper()
	h, err := New(Config{
		Seed:   testutil.Seed(seed),
		Logger: testutil.DiscardLogger(),
		Clock:  testutil.NewStepClock(1_700_000_000_000, 1),
	})
	require.NoError(t, err)
	return h
}

func TestMockedBalanceThenCleanup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 42)

	h.Client.MockResponse(mockclient.MethodGetAccountBalance, "5000000000")
	bal, err := h.Client.GetAccountBalance(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, "5000000000", bal)
	require.NoError(t, h.Tracker.AssertCalledWith(mockclient.MethodGetAccountBalance, "0x1"))

	h.Cleanup()

	bal, err = h.Client.GetAccountBalance(ctx, "0x1")
	require.NoError(t, err)
	assert.NotEqual(t, "5000000000", bal)
	assert.Equal(t, faker.New(42).Balance(), bal, "first balance drawn from the seed-42 stream")
	assert.Equal(t, 1, h.Tracker.CallCount(mockclient.MethodGetAccountBalance))
}

func TestResetKeepsSimulation(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.Simulator.SimulateLatency(25))
	h.Simulator.SimulateTimeout("getAccount")
	h.Client.MockResponse("m", "v")
	_, _ = h.Client.Call(context.Background(), "m")

	h.Reset()

	assert.Equal(t, int64(25), h.Simulator.Latency())
	assert.True(t, h.Simulator.IsMethodTimedOut("getAccount"))
	assert.Empty(t, h.Tracker.AllCalls())

	v, err := h.Client.Call(context.Background(), "m")
	require.NoError(t, err)
	assert.NotEqual(t, "v", v, "mocks were cleared")
}

func TestCleanupRestoresSimulationDefaults(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.Simulator.SimulateLatency(25))
	h.Simulator.SimulateTimeout("getAccount")
	require.NoError(t, h.Simulator.SimulateRateLimit(3))
	h.Simulator.SimulateNetworkError()

	h.Cleanup()

	assert.Equal(t, int64(0), h.Simulator.Latency())
	assert.False(t, h.Simulator.IsMethodTimedOut("getAccount"))
	assert.False(t, h.Simulator.IsNetworkErrorEnabled())
	_, limited := h.Simulator.RateLimitRemaining()
	assert.False(t, limited)
}

func TestResetDoesNotRewindFaker(t *testing.T) {
	h := newHarness(t, 9)
	first := h.Faker.Address()
	h.Reset()
	h.Cleanup()
	second := h.Faker.Address()

	ref := faker.New(9)
	assert.Equal(t, ref.Address(), first)
	assert.Equal(t, ref.Address(), second)
}

func TestSameSeedSameOutputs(t *testing.T) {
	ctx := context.Background()
	run := func() []any {
		h := newHarness(t, 1234)
		var out []any
		for _, m := range []string{
			mockclient.MethodGetAccountBalance,
			mockclient.MethodGetAccount,
			mockclient.MethodWaitForTransaction,
			mockclient.MethodGetLedgerInfo,
		} {
			v, err := h.Client.Call(ctx, m, "0x1")
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestDefaultLatency(t *testing.T) {
	h, err := New(Config{Seed: testutil.Seed(1), DefaultLatencyMs: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(20), h.Simulator.Latency())

	start := time.Now()
	_, err = h.Client.GetLedgerInfo(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNew_RejectsNegativeLatency(t *testing.T) {
	_, err := New(Config{DefaultLatencyMs: -1})
	require.Error(t, err)
	assert.True(t, rpcerr.IsValidation(err))
	assert.Panics(t, func() { MustNew(Config{DefaultLatencyMs: -1}) })
}

func TestNew_ZeroConfig(t *testing.T) {
	h := MustNew(Config{})
	v, err := h.Client.Call(context.Background(), mockclient.MethodGetAccountBalance)
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestHarnessesAreIsolated(t *testing.T) {
	a := newHarness(t, 1)
	b := newHarness(t, 1)
	a.Simulator.SimulateNetworkError()
	a.Client.MockResponse("m", "a")

	v, err := b.Client.Call(context.Background(), "m")
	require.NoError(t, err)
	assert.NotEqual(t, "a", v)
	assert.Empty(t, a.Tracker.Calls("m"))
}
