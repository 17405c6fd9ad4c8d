package harness

import (
	"fmt"

	"github.com/roach88/rpcsim/internal/tracker"
)

// Assertion checks the call history.
type Assertion struct {
	// Type selects the check: called, not_called, called_times,
	// called_with, or call_order.
	Type string `yaml:"type"`

	// Method is the method under test (all types except call_order).
	Method string `yaml:"method,omitempty"`

	// Args are the expected arguments (called_with).
	Args []any `yaml:"args,omitempty"`

	// Count is the expected number of calls (called_times).
	Count *int `yaml:"count,omitempty"`

	// Methods is the expected order of first calls (call_order).
	Methods []string `yaml:"methods,omitempty"`
}

// Assertion type constants.
const (
	AssertCalled      = "called"
	AssertNotCalled   = "not_called"
	AssertCalledTimes = "called_times"
	AssertCalledWith  = "called_with"
	AssertCallOrder   = "call_order"
)

func validateAssertion(where string, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", where)
	case AssertCalled, AssertNotCalled, AssertCalledWith:
		if a.Method == "" {
			return fmt.Errorf("%s: method is required for %s", where, a.Type)
		}
	case AssertCalledTimes:
		if a.Method == "" {
			return fmt.Errorf("%s: method is required for %s", where, a.Type)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("%s: count must be a non-negative integer for %s", where, a.Type)
		}
	case AssertCallOrder:
		if len(a.Methods) == 0 {
			return fmt.Errorf("%s: methods list is required for %s", where, a.Type)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}

// Evaluate runs a against tr. It returns the tracker's assertion error
// (an *rpcerr.Error of kind assertion) on failure.
func Evaluate(tr *tracker.Tracker, a Assertion) error {
	switch a.Type {
	case AssertCalled:
		return tr.AssertCalled(a.Method)
	case AssertNotCalled:
		return tr.AssertNotCalled(a.Method)
	case AssertCalledTimes:
		n := 0
		if a.Count != nil {
			n = *a.Count
		}
		return tr.AssertCalledTimes(a.Method, n)
	case AssertCalledWith:
		return tr.AssertCalledWith(a.Method, a.Args...)
	case AssertCallOrder:
		return tr.AssertCallOrder(a.Methods...)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
// An empty slice means all assertions passed.
func EvaluateAssertions(tr *tracker.Tracker, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := Evaluate(tr, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] (%s): %v", i, a.Type, err))
		}
	}
	return errs
}
