package store

import "errors"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored scenario execution.
type Run struct {
	ID          string   `json:"id"`
	Scenario    string   `json:"scenario"`
	Seed        int64    `json:"seed"`
	Pass        bool     `json:"pass"`
	TraceDigest string   `json:"trace_digest"`
	Errors      []string `json:"errors"`

	// StartedAt is unix milliseconds.
	StartedAt int64 `json:"started_at"`

	// Steps is empty on listings; ReadRun fills it.
	Steps []Step `json:"steps,omitempty"`
}

// Step is one executed flow step of a stored run.
type Step struct {
	Step      int    `json:"step"`
	Type      string `json:"type"`
	Method    string `json:"method,omitempty"`
	Args      []any  `json:"args,omitempty"`
	Result    any    `json:"result,omitempty"`
	Assertion string `json:"assertion,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	// Digest is the domain-separated hash of the step's canonical form.
	Digest string `json:"digest"`
}

// canonicalMap lowers the step to the canonical value space, dropping
// empty fields. The digest covers exactly these keys.
func (s Step) canonicalMap() map[string]any {
	m := map[string]any{
		"step": int64(s.Step),
		"type": s.Type,
	}
	if s.Method != "" {
		m["method"] = s.Method
	}
	if len(s.Args) > 0 {
		m["args"] = s.Args
	}
	if s.Result != nil {
		m["result"] = s.Result
	}
	if s.Assertion != "" {
		m["assertion"] = s.Assertion
	}
	if s.ErrorCode != "" {
		m["error_code"] = s.ErrorCode
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	return m
}
