package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rpcsim/internal/canon"
)

// TraceSnapshot captures the trace of a scenario run.
// Serialized as canonical JSON for byte-exact golden comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Seed         int64        `json:"seed"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap lowers the snapshot to canonical JSON values, dropping
// empty fields (canonical JSON has no null).
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step": int64(event.Step),
			"type": event.Type,
		}
		if event.Method != "" {
			eventMap["method"] = event.Method
		}
		if len(event.Args) > 0 {
			eventMap["args"] = event.Args
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		if event.Assertion != "" {
			eventMap["assertion"] = event.Assertion
		}
		if event.ErrorCode != "" {
			eventMap["error_code"] = event.ErrorCode
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"seed":          s.Seed,
		"trace":         traceList,
	}
}

// MarshalTrace renders the trace of result as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Seed:         result.Seed,
		Trace:        result.Trace,
	}
	return canon.Marshal(snapshot.toCanonicalMap())
}

// TraceDigest is the domain-separated SHA-256 of the canonical trace.
// Equal digests mean byte-identical traces.
func TraceDigest(scenarioName string, result *Result) (string, error) {
	data, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return "", err
	}
	return canon.HashWithDomain(canon.DomainTrace, data), nil
}

// RunWithGolden runs scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, Config{})
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
