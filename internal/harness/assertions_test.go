package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rpcsim/internal/rpcerr"
	"github.com/roach88/rpcsim/internal/tracker"
)

func intPtr(n int) *int { return &n }

func recorded(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr := tracker.New(nil)
	tr.RecordCall("getAccount", []any{"0x1"}, nil)
	tr.RecordCall("getAccountBalance", []any{"0x1"}, nil)
	tr.RecordCall("submitTransaction", []any{map[string]any{"to": "0x2", "amount": "5"}}, nil)
	tr.RecordCall("getAccountBalance", []any{"0x2"}, nil)
	return tr
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"called", Assertion{Type: AssertCalled, Method: "getAccount"}, false},
		{"called missing", Assertion{Type: AssertCalled, Method: "getLedgerInfo"}, true},
		{"not called", Assertion{Type: AssertNotCalled, Method: "getLedgerInfo"}, false},
		{"not called violated", Assertion{Type: AssertNotCalled, Method: "getAccount"}, true},
		{"called times", Assertion{Type: AssertCalledTimes, Method: "getAccountBalance", Count: intPtr(2)}, false},
		{"called times zero", Assertion{Type: AssertCalledTimes, Method: "getLedgerInfo", Count: intPtr(0)}, false},
		{"called times wrong", Assertion{Type: AssertCalledTimes, Method: "getAccountBalance", Count: intPtr(1)}, true},
		{"called with", Assertion{Type: AssertCalledWith, Method: "getAccountBalance", Args: []any{"0x2"}}, false},
		{
			"called with map",
			Assertion{Type: AssertCalledWith, Method: "submitTransaction", Args: []any{map[string]any{"to": "0x2", "amount": "5"}}},
			false,
		},
		{"called with wrong args", Assertion{Type: AssertCalledWith, Method: "getAccountBalance", Args: []any{"0x3"}}, true},
		{"call order", Assertion{Type: AssertCallOrder, Methods: []string{"getAccount", "submitTransaction"}}, false},
		{"call order interleaved", Assertion{Type: AssertCallOrder, Methods: []string{"getAccountBalance", "submitTransaction"}}, false},
		{"call order reversed", Assertion{Type: AssertCallOrder, Methods: []string{"submitTransaction", "getAccount"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(recorded(t), tt.assertion)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, rpcerr.IsAssertion(err))
			assert.Contains(t, err.Error(), "Recorded calls:")
		})
	}
}

func TestEvaluate_UnknownType(t *testing.T) {
	err := Evaluate(tracker.New(nil), Assertion{Type: "bogus"})
	require.Error(t, err)
	assert.False(t, rpcerr.IsAssertion(err))
}

func TestEvaluateAssertions(t *testing.T) {
	errs := EvaluateAssertions(recorded(t), []Assertion{
		{Type: AssertCalled, Method: "getAccount"},
		{Type: AssertNotCalled, Method: "getAccount"},
		{Type: AssertCalledTimes, Method: "submitTransaction", Count: intPtr(3)},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1] (not_called)")
	assert.Contains(t, errs[1], "assertions[2] (called_times)")
	assert.Contains(t, errs[1], "Expected: 3 calls")
}
