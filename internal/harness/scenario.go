package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

// Scenario is a scripted test run against a fresh harness.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Seed seeds the faker. Scenarios without a seed are not reproducible.
	Seed *int64 `yaml:"seed,omitempty"`

	// DefaultLatencyMs is the harness's starting latency.
	DefaultLatencyMs int64 `yaml:"default_latency_ms,omitempty"`

	// Simulation is applied before the flow runs.
	Simulation *Simulation `yaml:"simulation,omitempty"`

	// Mocks are registered before the flow runs.
	Mocks []Mock `yaml:"mocks,omitempty"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions run against the call history after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Simulation sets network conditions. Unset fields leave the current
// setting unchanged.
type Simulation struct {
	LatencyMs    *int64   `yaml:"latency_ms,omitempty"`
	Timeouts     []string `yaml:"timeouts,omitempty"`
	RateLimit    *int64   `yaml:"rate_limit,omitempty"`
	NetworkError *bool    `yaml:"network_error,omitempty"`
}

// Mock registers canned behavior for one method. At least one of Response,
// Once, or Error is required.
type Mock struct {
	Method   string     `yaml:"method"`
	Response any        `yaml:"response,omitempty"`
	Once     []any      `yaml:"once,omitempty"`
	Error    *MockError `yaml:"error,omitempty"`
}

// MockError is the error shape a mock fails with.
type MockError struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
}

// FlowStep is one step of the flow. Exactly one field is set.
type FlowStep struct {
	// Call invokes a client method with Args and checks Expect.
	Call   string  `yaml:"call,omitempty"`
	Args   []any   `yaml:"args,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`

	// Reset runs Harness.Reset.
	Reset bool `yaml:"reset,omitempty"`

	// Cleanup runs Harness.Cleanup.
	Cleanup bool `yaml:"cleanup,omitempty"`

	// Simulate changes network conditions mid-flow.
	Simulate *Simulation `yaml:"simulate,omitempty"`

	// Mock registers a mock mid-flow.
	Mock *Mock `yaml:"mock,omitempty"`

	// Assert evaluates an assertion mid-flow.
	Assert *Assertion `yaml:"assert,omitempty"`
}

// Expect describes the outcome a call step must have. With neither field
// set the call must succeed.
type Expect struct {
	// Result is compared to the returned value as canonical JSON.
	Result any `yaml:"result,omitempty"`

	// Error requires the call to fail.
	Error *ExpectError `yaml:"error,omitempty"`
}

// ExpectError matches a failed call. Empty fields match anything.
type ExpectError struct {
	Code     string `yaml:"code,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// Step kinds, as recorded in the trace.
const (
	StepCall     = "call"
	StepReset    = "reset"
	StepCleanup  = "cleanup"
	StepSimulate = "simulate"
	StepMock     = "mock"
	StepAssert   = "assert"
)

// Kind returns which step kind s is, or "" when none or several are set.
func (s FlowStep) Kind() string {
	var kinds []string
	if s.Call != "" {
		kinds = append(kinds, StepCall)
	}
	if s.Reset {
		kinds = append(kinds, StepReset)
	}
	if s.Cleanup {
		kinds = append(kinds, StepCleanup)
	}
	if s.Simulate != nil {
		kinds = append(kinds, StepSimulate)
	}
	if s.Mock != nil {
		kinds = append(kinds, StepMock)
	}
	if s.Assert != nil {
		kinds = append(kinds, StepAssert)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.DefaultLatencyMs < 0 {
		return fmt.Errorf("default_latency_ms must be non-negative")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if s.Simulation != nil {
		if err := validateSimulation("simulation", s.Simulation); err != nil {
			return err
		}
	}
	for i := range s.Mocks {
		if err := validateMock(fmt.Sprintf("mocks[%d]", i), &s.Mocks[i]); err != nil {
			return err
		}
	}

	for i, step := range s.Flow {
		where := fmt.Sprintf("flow[%d]", i)
		switch step.Kind() {
		case "":
			return fmt.Errorf("%s: exactly one of call, reset, cleanup, simulate, mock, assert is required", where)
		case StepCall:
		case StepSimulate:
			if err := validateSimulation(where+".simulate", step.Simulate); err != nil {
				return err
			}
		case StepMock:
			if err := validateMock(where+".mock", step.Mock); err != nil {
				return err
			}
		case StepAssert:
			if err := validateAssertion(where+".assert", step.Assert); err != nil {
				return err
			}
		}
		if step.Kind() != StepCall && (step.Args != nil || step.Expect != nil) {
			return fmt.Errorf("%s: args and expect are only valid on call steps", where)
		}
		if step.Expect != nil && step.Expect.Result != nil && step.Expect.Error != nil {
			return fmt.Errorf("%s.expect: result and error are mutually exclusive", where)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(fmt.Sprintf("assertions[%d]", i), &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateSimulation(where string, sim *Simulation) error {
	if sim.LatencyMs != nil && *sim.LatencyMs < 0 {
		return fmt.Errorf("%s: latency_ms must be non-negative", where)
	}
	if sim.RateLimit != nil && *sim.RateLimit <= 0 {
		return fmt.Errorf("%s: rate_limit must be positive", where)
	}
	return nil
}

func validateMock(where string, m *Mock) error {
	if m.Method == "" {
		return fmt.Errorf("%s: method is required", where)
	}
	if m.Response == nil && len(m.Once) == 0 && m.Error == nil {
		return fmt.Errorf("%s: one of response, once, error is required", where)
	}
	return nil
}

// err converts the YAML error shape to the error the client returns.
func (e *MockError) err() error {
	msg := e.Message
	if msg == "" {
		msg = "mocked error"
	}
	return rpcerr.Mock(e.Code, msg)
}
