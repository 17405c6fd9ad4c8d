package tracker

import (
	"fmt"
	"reflect"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

// Assertion names, used in rpcerr details and scenario files.
const (
	AssertCalled      = "assertCalled"
	AssertNotCalled   = "assertNotCalled"
	AssertCalledTimes = "assertCalledTimes"
	AssertCalledWith  = "assertCalledWith"
	AssertCallOrder   = "assertCallOrder"
)

// AssertCalled fails unless method was called at least once.
func (t *Tracker) AssertCalled(method string) error {
	if n := t.CallCount(method); n == 0 {
		return t.fail(AssertCalled, method, "at least 1 call", plural(n))
	}
	return nil
}

// AssertNotCalled fails unless method was never called.
func (t *Tracker) AssertNotCalled(method string) error {
	if n := t.CallCount(method); n != 0 {
		return t.fail(AssertNotCalled, method, "0 calls", plural(n))
	}
	return nil
}

// AssertCalledTimes fails unless method was called exactly n times.
func (t *Tracker) AssertCalledTimes(method string, n int) error {
	if got := t.CallCount(method); got != n {
		return t.fail(AssertCalledTimes, method, plural(n), plural(got))
	}
	return nil
}

// AssertCalledWith fails unless at least one call to method had an argument
// sequence deep-equal to args.
func (t *Tracker) AssertCalledWith(method string, args ...any) error {
	calls := t.Calls(method)
	for _, c := range calls {
		if argsEqual(c.Args, args) {
			return nil
		}
	}

	actual := "no calls"
	if len(calls) > 0 {
		actual = fmt.Sprintf("%d call(s) with other arguments", len(calls))
	}
	return t.fail(AssertCalledWith, method, fmt.Sprintf("a call with args %v", args), actual)
}

// AssertCallOrder fails unless the first call of each method appears in the
// given order. Other calls may be interleaved.
func (t *Tracker) AssertCallOrder(methods ...string) error {
	first := make(map[string]int64)
	for _, c := range t.AllCalls() {
		if _, ok := first[c.Method]; !ok {
			first[c.Method] = c.Seq
		}
	}

	for _, m := range methods {
		if _, ok := first[m]; !ok {
			return t.fail(AssertCallOrder, m, fmt.Sprintf("all methods called: %v", methods), "missing "+m)
		}
	}
	for i := 1; i < len(methods); i++ {
		prev, curr := methods[i-1], methods[i]
		if first[prev] >= first[curr] {
			return t.fail(AssertCallOrder, curr,
				fmt.Sprintf("calls in order: %v", methods),
				fmt.Sprintf("%s (seq %d) should be before %s (seq %d)", prev, first[prev], curr, first[curr]))
		}
	}
	return nil
}

func (t *Tracker) fail(assertion, method, expected, actual string) error {
	all := t.AllCalls()
	calls := make([]string, len(all))
	for i, c := range all {
		calls[i] = c.String()
	}
	return rpcerr.Assertion(assertion, method, expected, actual, calls)
}

// argsEqual compares argument sequences element-wise. A nil and an empty
// sequence are equal.
func argsEqual(actual, expected []any) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if !reflect.DeepEqual(actual[i], expected[i]) {
			return false
		}
	}
	return true
}

func plural(n int) string {
	if n == 1 {
		return "1 call"
	}
	return fmt.Sprintf("%d calls", n)
}
