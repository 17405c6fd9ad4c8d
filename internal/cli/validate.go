package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rpcsim/internal/canon"
	"github.com/roach88/rpcsim/internal/rpcerr"
	"github.com/roach88/rpcsim/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema     string
	SchemasDir string
}

// ValidationResult holds the outcome of validating one payload.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Schema   string `json:"schema,omitempty"`
	Code     string `json:"code,omitempty"`
	Argument string `json:"argument,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <payload.json|->",
		Short: "Validate a transaction payload",
		Long: `Validate a JSON transaction payload.

Without --schema the payload kind is detected (transfer or entry function)
and checked by the built-in validators. With --schema it is checked
against a named CUE schema; --schemas loads extra *.cue schemas from a
directory first.

Examples:
  rpcsim validate payload.json
  rpcsim validate payload.json --schema transfer
  rpcsim validate payload.json --schemas ./schemas --schema faucet
  cat payload.json | rpcsim validate -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "named schema to validate against")
	cmd.Flags().StringVar(&opts.SchemasDir, "schemas", "", "directory of extra CUE schemas")

	return cmd
}

func runValidate(opts *ValidateOptions, source string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := readPayload(source, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read payload", err)
	}
	payload, err := parseJSONValue(string(data))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload JSON", err)
	}
	// Lower json.Number to int64 where possible so schemas see integers.
	if n, err := canon.Normalize(payload); err == nil {
		payload = n
	}

	var valid bool
	var verr error
	if opts.Schema == "" && opts.SchemasDir == "" {
		valid, verr = validate.ValidatePayload(payload)
	} else {
		reg := validate.NewRegistry()
		if opts.SchemasDir != "" {
			names, err := reg.LoadDir(opts.SchemasDir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load schemas", err)
			}
			formatter.VerboseLog("Loaded %d schema(s) from %s: %v", len(names), opts.SchemasDir, names)
		}
		if opts.Schema == "" {
			return NewExitError(ExitCommandError, "--schemas requires --schema")
		}
		valid, verr = reg.Validate(opts.Schema, payload)
	}

	result := ValidationResult{Valid: valid, Schema: opts.Schema}
	if verr != nil {
		e, ok := rpcerr.As(verr)
		if !ok {
			return WrapExitError(ExitCommandError, "validation error", verr)
		}
		if e.Kind == rpcerr.KindUnknownSchema {
			if err := formatter.Error(string(e.Code), e.Message, e.Details); err != nil {
				return err
			}
			return WrapExitError(ExitCommandError, "unknown schema", verr)
		}
		result.Code = string(e.Code)
		result.Argument = e.Argument()
		result.Message = e.Message
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeInvalidPayload, Message: result.Message}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ payload is valid")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ invalid %s: %s\n", result.Argument, result.Message)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("invalid payload: %s", result.Argument))
	}
	return nil
}

// readPayload reads path, or stdin when path is "-".
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
