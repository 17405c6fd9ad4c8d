package harness

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rpcsim/internal/faker"
	"github.com/roach88/rpcsim/internal/testutil"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_MockedBalanceThenCleanup(t *testing.T) {
	s := mustParse(t, `
name: e2e_balance
description: "mocked balance, then faker default after cleanup"
seed: 42
flow:
  - mock: {method: getAccountBalance, response: "5000000000"}
  - call: getAccountBalance
    args: ["0x1"]
    expect: {result: "5000000000"}
  - assert: {type: called_with, method: getAccountBalance, args: ["0x1"]}
  - cleanup: true
  - call: getAccountBalance
    args: ["0x1"]
assertions:
  - type: called_times
    method: getAccountBalance
    count: 1
`)
	result, err := Run(context.Background(), s, Config{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(42), result.Seed)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, faker.New(42).Balance(), last.Result)
	assert.NotEqual(t, "5000000000", last.Result)
}

func TestRun_ValidationRejection(t *testing.T) {
	s := mustParse(t, `
name: zero_amount
description: "submitting a zero amount fails validation"
seed: 1
flow:
  - call: submitTransaction
    args:
      - to: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
        amount: "0"
    expect: {error: {code: INVALID_ARGUMENT, contains: amount}}
`)
	result, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "INVALID_ARGUMENT", result.Trace[0].ErrorCode)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := mustParse(t, `
name: failing
description: "every kind of mismatch"
seed: 3
mocks:
  - method: getAccountBalance
    response: "10"
simulation:
  timeouts: [getLedgerInfo]
flow:
  - call: getAccountBalance
    expect: {result: "11"}
  - call: getLedgerInfo
  - call: getAccountBalance
    expect: {error: {code: TIMEOUT}}
  - call: getLedgerInfo
    expect: {error: {code: NETWORK_ERROR}}
  - call: getLedgerInfo
    expect: {error: {contains: "Rate limited"}}
  - assert: {type: not_called, method: getAccountBalance}
assertions:
  - type: called
    method: waitForTransaction
`)
	result, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], `expected result "11", got "10"`)
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "expected error, call succeeded")
	assert.Contains(t, result.Errors[3], "expected error code NETWORK_ERROR")
	assert.Contains(t, result.Errors[4], `expected error containing "Rate limited"`)
	assert.Contains(t, result.Errors[5], "flow[5] assert not_called")
	assert.Contains(t, result.Errors[6], "assertions[0] (called)")
}

func TestRun_ResetStep(t *testing.T) {
	s := mustParse(t, `
name: reset
description: "reset keeps simulation"
seed: 5
simulation: {network_error: true}
flow:
  - mock: {method: m, response: "v"}
  - reset: true
  - call: m
    expect: {error: {code: NETWORK_ERROR, contains: "Network error"}}
  - simulate: {network_error: false}
  - call: m
assertions:
  - type: called_times
    method: m
    count: 2
`)
	result, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotEqual(t, "v", result.Trace[4].Result, "reset cleared the mock")
}

func TestRun_OnceQueue(t *testing.T) {
	s := mustParse(t, `
name: once
description: "one-shot values are FIFO ahead of the persistent value"
seed: 5
mocks:
  - method: getAccountBalance
    response: "p"
    once: ["a", "b"]
flow:
  - call: getAccountBalance
    expect: {result: "a"}
  - call: getAccountBalance
    expect: {result: "b"}
  - call: getAccountBalance
    expect: {result: "p"}
`)
	result, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DeterministicTrace(t *testing.T) {
	s := mustParse(t, `
name: defaults
description: "unmocked calls return seeded faker values"
seed: 99
flow:
  - call: getAccountBalance
    args: ["0x1"]
  - call: getAccount
    args: ["0x1"]
  - call: submitTransaction
  - call: getLedgerInfo
  - call: someUnknownMethod
`)
	a, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	b, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.True(t, a.Pass, "errors: %v", a.Errors)

	da, err := TraceDigest(s.Name, a)
	require.NoError(t, err)
	db, err := TraceDigest(s.Name, b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	seed := int64(100)
	s.Seed = &seed
	c, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	dc, err := TraceDigest(s.Name, c)
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}

func TestRun_DefaultLatencyFromScenario(t *testing.T) {
	s := mustParse(t, `
name: slow
description: "default latency applies to every call"
seed: 1
default_latency_ms: 15
flow:
  - call: getLedgerInfo
`)
	start := time.Now()
	result, err := Run(context.Background(), s, Config{})
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestRun_ContextCanceled(t *testing.T) {
	s := mustParse(t, `
name: canceled
description: "a canceled context aborts the run"
seed: 1
simulation: {latency_ms: 10000}
flow:
  - call: getLedgerInfo
`)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, s, Config{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "deadline exceeded"))
}
