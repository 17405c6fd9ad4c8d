package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rpcsim/internal/canon"
	"github.com/roach88/rpcsim/internal/harness"
	"github.com/roach88/rpcsim/internal/rpcerr"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	NetworkError bool
	Timeout      bool
	Mock         string
	MockError    string
}

// CallResult is the outcome of a single ad-hoc call.
type CallResult struct {
	Method    string `json:"method"`
	Args      []any  `json:"args"`
	Seed      int64  `json:"seed"`
	Result    any    `json:"result,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <method> [arg...]",
		Short: "Call one RPC method on a fresh harness",
		Long: `Call one RPC method on a fresh harness and print the result.

Each argument is parsed as JSON; anything that is not valid JSON is
passed as a plain string. Unmocked methods return seeded fake values.

Examples:
  rpcsim call getAccountBalance 0x1 --seed 42
  rpcsim call submitTransaction '{"to":"0x...","amount":"100"}'
  rpcsim call getLedgerInfo --network-error
  rpcsim call getAccount 0x1 --mock '{"address":"0x1","sequence_number":"3","authentication_key":"0x0"}'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callMethod(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NetworkError, "network-error", false, "fail the call with a simulated network error")
	cmd.Flags().BoolVar(&opts.Timeout, "timeout", false, "fail the call with a simulated timeout")
	cmd.Flags().StringVar(&opts.Mock, "mock", "", "mocked response as JSON")
	cmd.Flags().StringVar(&opts.MockError, "mock-error", "", "mocked error code")

	return cmd
}

func callMethod(opts *CallOptions, method string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	h, err := harness.New(harness.Config{
		Seed:             opts.Seed(),
		DefaultLatencyMs: opts.DefaultLatencyMs(),
		Logger:           opts.Logger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create harness", err)
	}

	if opts.NetworkError {
		h.Simulator.SimulateNetworkError()
	}
	if opts.Timeout {
		h.Simulator.SimulateTimeout(method)
	}
	if opts.Mock != "" {
		v, err := parseJSONValue(opts.Mock)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --mock JSON", err)
		}
		h.Client.MockResponse(method, v)
	}
	if opts.MockError != "" {
		h.Client.MockError(method, rpcerr.Mock(opts.MockError, "mocked error"))
	}

	args := make([]any, len(rawArgs))
	for i, raw := range rawArgs {
		if v, err := parseJSONValue(raw); err == nil {
			args[i] = v
		} else {
			args[i] = raw
		}
	}

	formatter.VerboseLog("Calling %s with %d arg(s), seed %d", method, len(args), h.Faker.Seed())

	res := CallResult{Method: method, Args: args, Seed: h.Faker.Seed()}
	value, callErr := h.Client.Call(contextOrBackground(cmd.Context()), method, args...)
	if callErr != nil {
		res.Error = callErr.Error()
		if e, ok := rpcerr.As(callErr); ok {
			res.ErrorCode = string(e.Code)
		}
	} else {
		n, err := canon.Normalize(value)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render result", err)
		}
		res.Result = n
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: res}
		if callErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeCallFailed, Message: res.Error}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else if callErr != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", res.Error)
	} else {
		data, err := canon.Marshal(res.Result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render result", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	if callErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", method), callErr)
	}
	return nil
}

// parseJSONValue decodes a single JSON value, keeping integers exact.
func parseJSONValue(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}
