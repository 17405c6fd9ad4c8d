package harness

// TraceEvent records one executed flow step.
type TraceEvent struct {
	// Step is the 1-based flow position.
	Step int `json:"step"`

	// Type is the step kind (call, reset, cleanup, simulate, mock, assert).
	Type string `json:"type"`

	// Method is the called, mocked, or asserted method.
	Method string `json:"method,omitempty"`

	// Args are the call arguments.
	Args []any `json:"args,omitempty"`

	// Result is the canonical form of the value a call returned.
	Result any `json:"result,omitempty"`

	// Assertion is the assertion type of an assert step.
	Assertion string `json:"assertion,omitempty"`

	// ErrorCode and Error describe a failed call or assertion.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Seed is the faker seed the run used.
	Seed int64 `json:"seed"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a trace event.
func (r *Result) AddEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
