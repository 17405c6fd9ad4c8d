// Package harness composes the mock client, call tracker, network simulator
// and faker into one object per test, and runs YAML scenarios against it.
//
// # Programmatic Use
//
//	h, err := harness.New(harness.Config{Seed: testutil.Seed(42)})
//	h.Client.MockResponse("getAccountBalance", "5000000000")
//	bal, err := h.Client.GetAccountBalance(ctx, "0x1")
//	err = h.Tracker.AssertCalledWith("getAccountBalance", "0x1")
//	h.Cleanup()
//
// Reset clears mocks and call history but keeps simulator settings.
// Cleanup also restores the simulator defaults. Neither touches the faker,
// whose stream continues where it left off.
//
// # Scenario Format
//
//	name: balance_lookup
//	description: "What this scenario checks"
//	seed: 42
//	default_latency_ms: 0
//	simulation:
//	  latency_ms: 10
//	  timeouts: [waitForTransaction]
//	  rate_limit: 5
//	  network_error: false
//	mocks:
//	  - method: getAccountBalance
//	    response: "5000000000"
//	    once: ["1"]
//	  - method: getAccount
//	    error: { code: ACCOUNT_NOT_FOUND, message: "no such account" }
//	flow:
//	  - call: getAccountBalance
//	    args: ["0x1"]
//	    expect: { result: "1" }
//	  - call: waitForTransaction
//	    args: ["0xabc"]
//	    expect: { error: { code: TIMEOUT, contains: "Request timed out" } }
//	  - assert: { type: called_with, method: getAccountBalance, args: ["0x1"] }
//	  - cleanup: true
//	assertions:
//	  - type: called_times
//	    method: getAccountBalance
//	    count: 0
//
// Each flow step sets exactly one of call, reset, cleanup, simulate, mock or
// assert. Results are compared as canonical JSON.
//
// # Assertion Types
//
//   - called: the method was called at least once
//   - not_called: the method was never called
//   - called_times: the method was called exactly count times
//   - called_with: some call had exactly args
//   - call_order: the first calls of methods happened in that order
//
// # Golden Traces
//
// A seeded scenario produces a byte-identical canonical trace on every
// run. RunWithGolden compares it with testdata/golden/<name>.golden.
package harness
