// Package rpcerr defines the single error type that crosses every rpcsim
// component boundary.
//
// Callers switch on Kind (or use the Is* predicates) instead of sniffing
// error strings. Messages stay human readable and, for simulated network
// conditions, always contain the documented substrings ("Network error",
// "Request timed out", "Rate limited") that test suites match on.
package rpcerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the closed set of rpcsim failures.
type Kind int

const (
	// KindValidation is a malformed payload or argument.
	KindValidation Kind = iota + 1
	// KindNetwork is a simulated network failure.
	KindNetwork
	// KindTimeout is a simulated per-method timeout.
	KindTimeout
	// KindRateLimit is a simulated exhausted rate-limit budget.
	KindRateLimit
	// KindAssertion is a failed call tracker assertion.
	KindAssertion
	// KindUnknownSchema is a schema registry miss.
	KindUnknownSchema
	// KindResponse is a mocked value that does not fit the called method.
	KindResponse
	// KindMock is an error registered by the test author via MockError.
	KindMock
)

// Code is the stable, machine-readable error code.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeTimeout         Code = "TIMEOUT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeAssertionFailed Code = "ASSERTION_FAILED"
	CodeUnknownSchema   Code = "UNKNOWN_SCHEMA"
	CodeInvalidResponse Code = "INVALID_RESPONSE"
	CodeMockError       Code = "MOCK_ERROR"
)

// Detail keys used across packages.
const (
	DetailArgument  = "argument"
	DetailAssertion = "assertion"
	DetailExpected  = "expected"
	DetailActual    = "actual"
	DetailSchema    = "schema"
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAssertion:
		return "assertion"
	case KindUnknownSchema:
		return "unknown_schema"
	case KindResponse:
		return "response"
	case KindMock:
		return "mock"
	default:
		return "unknown"
	}
}

// Error is the structured rpcsim error.
type Error struct {
	// Kind selects the variant.
	Kind Kind

	// Code is the wire-level error code.
	Code Code

	// Message is a human-readable description.
	Message string

	// Method is the RPC method involved, if any.
	Method string

	// Details carries structured context such as the offending argument.
	Details map[string]string

	// Calls is a rendering of the recorded calls, attached to assertion
	// failures only.
	Calls []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindAssertion {
		return e.assertionMessage()
	}
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (method=%s)", e.Code, e.Message, e.Method)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) assertionMessage() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s(%s)\n", e.Details[DetailAssertion], e.Method)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Details[DetailExpected])
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Details[DetailActual])
	if len(e.Calls) > 0 {
		fmt.Fprintf(&buf, "\nRecorded calls:\n")
		for i, c := range e.Calls {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, c)
		}
	}
	return buf.String()
}

// Argument returns Details["argument"], or "" when absent.
func (e *Error) Argument() string {
	return e.Details[DetailArgument]
}

// New creates an error of the given kind. Used by tests and by MockError
// callers who want a structured error shape.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Mock builds a test-author error with an arbitrary code, the shape
// accepted by the mock client's MockError.
func Mock(code, message string) *Error {
	if code == "" {
		code = string(CodeMockError)
	}
	return &Error{Kind: KindMock, Code: Code(code), Message: message}
}

// InvalidArgument creates a validation error naming the offending argument.
func InvalidArgument(argument, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidArgument,
		Message: message,
		Details: map[string]string{DetailArgument: argument},
	}
}

// Network creates the simulated network failure for method.
func Network(method string) *Error {
	return &Error{
		Kind:    KindNetwork,
		Code:    CodeNetworkError,
		Message: "Network error: simulated network failure",
		Method:  method,
	}
}

// Timeout creates the simulated timeout for method.
func Timeout(method string) *Error {
	return &Error{
		Kind:    KindTimeout,
		Code:    CodeTimeout,
		Message: fmt.Sprintf("Request timed out: %s exceeded the simulated deadline", method),
		Method:  method,
	}
}

// RateLimited creates the simulated rate-limit rejection for method.
func RateLimited(method string) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Code:    CodeRateLimited,
		Message: "Rate limited: simulated call budget exhausted",
		Method:  method,
	}
}

// Assertion creates a call tracker assertion failure.
func Assertion(assertion, method, expected, actual string, calls []string) *Error {
	return &Error{
		Kind:    KindAssertion,
		Code:    CodeAssertionFailed,
		Message: fmt.Sprintf("%s(%s): expected %s, got %s", assertion, method, expected, actual),
		Method:  method,
		Details: map[string]string{
			DetailAssertion: assertion,
			DetailExpected:  expected,
			DetailActual:    actual,
		},
		Calls: calls,
	}
}

// UnknownSchema creates a registry miss for name. Known schema names are
// listed in the message to help spot typos.
func UnknownSchema(name string, known []string) *Error {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	return &Error{
		Kind:    KindUnknownSchema,
		Code:    CodeUnknownSchema,
		Message: fmt.Sprintf("unknown schema %q (registered: %s)", name, strings.Join(sorted, ", ")),
		Details: map[string]string{DetailSchema: name},
	}
}

// InvalidResponse reports a mocked value whose shape does not fit method.
func InvalidResponse(method string, want string, got any) *Error {
	return &Error{
		Kind:    KindResponse,
		Code:    CodeInvalidResponse,
		Message: fmt.Sprintf("mocked response has type %T, want %s", got, want),
		Method:  method,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	if re, ok := As(err); ok {
		return re.Kind
	}
	return 0
}

// IsNetwork reports whether err is a simulated network failure.
func IsNetwork(err error) bool { return KindOf(err) == KindNetwork }

// IsTimeout reports whether err is a simulated timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsRateLimited reports whether err is a simulated rate-limit rejection.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimit }

// IsAssertion reports whether err is a call tracker assertion failure.
func IsAssertion(err error) bool { return KindOf(err) == KindAssertion }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsUnknownSchema reports whether err is a schema registry miss.
func IsUnknownSchema(err error) bool { return KindOf(err) == KindUnknownSchema }

// IsSimulated reports whether err was injected by the network simulator.
func IsSimulated(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimit:
		return true
	}
	return false
}
