package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rpcsim/internal/canon"
	"github.com/roach88/rpcsim/internal/mockclient"
	"github.com/roach88/rpcsim/internal/rpcerr"
	"github.com/roach88/rpcsim/internal/simulator"
)

// Run executes scenario against a fresh harness built from cfg. The
// scenario's seed and default latency override cfg when set.
//
// Failed expectations and assertions are reported in the Result. Run
// returns an error only when the harness cannot be built or ctx ends.
func Run(ctx context.Context, scenario *Scenario, cfg Config) (*Result, error) {
	if scenario.Seed != nil {
		cfg.Seed = scenario.Seed
	}
	if scenario.DefaultLatencyMs != 0 {
		cfg.DefaultLatencyMs = scenario.DefaultLatencyMs
	}

	h, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create harness: %w", err)
	}

	result := NewResult()
	result.Seed = h.Faker.Seed()

	if scenario.Simulation != nil {
		if err := applySimulation(h.Simulator, scenario.Simulation); err != nil {
			return nil, fmt.Errorf("failed to apply simulation: %w", err)
		}
	}
	for _, m := range scenario.Mocks {
		applyMock(h.Client, m)
	}

	for i, step := range scenario.Flow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(h.Tracker, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"seed", result.Seed,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, step FlowStep, result *Result) error {
	event := TraceEvent{Step: i + 1, Type: step.Kind()}

	switch event.Type {
	case StepCall:
		if err := h.runCall(ctx, i, step, &event, result); err != nil {
			return err
		}
	case StepReset:
		h.Reset()
	case StepCleanup:
		h.Cleanup()
	case StepSimulate:
		if err := applySimulation(h.Simulator, step.Simulate); err != nil {
			return err
		}
	case StepMock:
		event.Method = step.Mock.Method
		applyMock(h.Client, *step.Mock)
	case StepAssert:
		event.Method = step.Assert.Method
		event.Assertion = step.Assert.Type
		if err := Evaluate(h.Tracker, *step.Assert); err != nil {
			event.ErrorCode = string(rpcerr.CodeAssertionFailed)
			event.Error = err.Error()
			result.AddError(fmt.Sprintf("flow[%d] assert %s: %v", i, step.Assert.Type, err))
		}
	default:
		return fmt.Errorf("invalid step")
	}

	result.AddEvent(event)
	h.logger.Info("flow step completed",
		"step", i,
		"type", event.Type,
		"method", event.Method,
		"error_code", event.ErrorCode,
	)
	return nil
}

func (h *Harness) runCall(ctx context.Context, i int, step FlowStep, event *TraceEvent, result *Result) error {
	event.Method = step.Call
	event.Args = step.Args

	value, callErr := h.Client.Call(ctx, step.Call, step.Args...)
	if callErr != nil && ctx.Err() != nil && errors.Is(callErr, ctx.Err()) {
		return callErr
	}

	where := fmt.Sprintf("flow[%d] %s", i, step.Call)

	if callErr != nil {
		event.Error = callErr.Error()
		if re, ok := rpcerr.As(callErr); ok {
			event.ErrorCode = string(re.Code)
		}
	} else {
		normalized, err := canon.Normalize(value)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: result is not canonical: %v", where, err))
		} else {
			event.Result = normalized
		}
	}

	switch {
	case step.Expect != nil && step.Expect.Error != nil:
		checkExpectedError(where, step.Expect.Error, callErr, result)
	case callErr != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, callErr))
	case step.Expect != nil && step.Expect.Result != nil:
		checkExpectedResult(where, step.Expect.Result, value, result)
	}
	return nil
}

func checkExpectedError(where string, want *ExpectError, got error, result *Result) {
	if got == nil {
		result.AddError(fmt.Sprintf("%s: expected error, call succeeded", where))
		return
	}
	if want.Code != "" {
		code := ""
		if re, ok := rpcerr.As(got); ok {
			code = string(re.Code)
		}
		if code != want.Code {
			result.AddError(fmt.Sprintf("%s: expected error code %s, got %q (%v)", where, want.Code, code, got))
			return
		}
	}
	if want.Contains != "" && !strings.Contains(got.Error(), want.Contains) {
		result.AddError(fmt.Sprintf("%s: expected error containing %q, got %v", where, want.Contains, got))
	}
}

func checkExpectedResult(where string, want, got any, result *Result) {
	wantJSON, err := canon.Marshal(want)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: expected result is not canonical: %v", where, err))
		return
	}
	gotJSON, err := canon.Marshal(got)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: result is not canonical: %v", where, err))
		return
	}
	if !bytes.Equal(wantJSON, gotJSON) {
		result.AddError(fmt.Sprintf("%s: expected result %s, got %s", where, wantJSON, gotJSON))
	}
}

func applySimulation(sim *simulator.Simulator, s *Simulation) error {
	if s.LatencyMs != nil {
		if err := sim.SimulateLatency(*s.LatencyMs); err != nil {
			return err
		}
	}
	for _, m := range s.Timeouts {
		sim.SimulateTimeout(m)
	}
	if s.RateLimit != nil {
		if err := sim.SimulateRateLimit(*s.RateLimit); err != nil {
			return err
		}
	}
	if s.NetworkError != nil {
		if *s.NetworkError {
			sim.SimulateNetworkError()
		} else {
			sim.ClearNetworkError()
		}
	}
	return nil
}

func applyMock(c *mockclient.Client, m Mock) {
	if m.Response != nil {
		c.MockResponse(m.Method, m.Response)
	}
	for _, v := range m.Once {
		c.MockResponseOnce(m.Method, v)
	}
	if m.Error != nil {
		c.MockError(m.Method, m.Error.err())
	}
}
