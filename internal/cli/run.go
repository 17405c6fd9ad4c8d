package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rpcsim/internal/harness"
	"github.com/roach88/rpcsim/internal/store"
)

// Golden comparison outcomes.
const (
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name        string   `json:"name"`
	File        string   `json:"file"`
	Pass        bool     `json:"pass"`
	Seed        int64    `json:"seed"`
	TraceDigest string   `json:"trace_digest,omitempty"`
	Golden      string   `json:"golden,omitempty"`
	RunID       string   `json:"run_id,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// RunSummary holds the overall result of a run command.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file|scenarios-dir>",
		Short: "Run scenario files",
		Long: `Run YAML scenarios against a fresh harness each.

A scenario's own seed wins over --seed. When golden/<name>.golden exists
next to a scenario file, the canonical trace must match it byte for byte.
With --db every run is recorded in the SQLite run history.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, database errors, etc.)

Examples:
  rpcsim run ./scenarios
  rpcsim run ./scenarios --filter "transfer-*"
  rpcsim run ./scenarios/balance.yaml --update
  rpcsim run ./scenarios --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path), err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if len(files) == 0 {
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: RunSummary{Scenarios: []ScenarioResult{}}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var st *store.Store
	if db := opts.Database(); db != "" {
		st, err = store.Open(db)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		formatter.VerboseLog("Recording runs in %s", db)
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := harness.Config{
		Seed:             opts.Seed(),
		DefaultLatencyMs: opts.DefaultLatencyMs(),
		Logger:           opts.Logger(cmd.ErrOrStderr()),
	}

	summary := RunSummary{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		res, err := runScenario(ctx, file, cfg, opts, st)
		if err != nil {
			return err
		}
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), res)
		}
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summary}
		if summary.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeScenarioFailed,
				Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
			}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files under dir.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes one scenario file. Scenario problems are reported
// in the result; the returned error is reserved for aborts (a canceled
// context or a failing run history).
func runScenario(ctx context.Context, file string, cfg harness.Config, opts *RunOptions, st *store.Store) (ScenarioResult, error) {
	res := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res, nil
	}
	res.Name = scenario.Name

	result, err := harness.Run(ctx, scenario, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, WrapExitError(ExitCommandError, "run interrupted", err)
		}
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res, nil
	}
	res.Pass = result.Pass
	res.Seed = result.Seed
	res.Errors = result.Errors

	trace, err := harness.MarshalTrace(scenario.Name, result)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return res, nil
	}
	digest, err := harness.TraceDigest(scenario.Name, result)
	if err != nil {
		return res, err
	}
	res.TraceDigest = digest

	res.Golden, err = checkGolden(file, trace, opts.Update)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, err.Error())
	}
	if res.Golden == GoldenMismatch {
		res.Pass = false
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}

	if st != nil {
		run := toStoredRun(scenario.Name, result, digest)
		run.Pass = res.Pass
		run.Errors = res.Errors
		if err := st.SaveRun(ctx, run); err != nil {
			return res, WrapExitError(ExitCommandError, "failed to record run", err)
		}
		res.RunID = run.ID
	}

	return res, nil
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares trace against the scenario's golden file, or
// rewrites it when update is set. It returns "" when there is no golden
// file to compare against.
func checkGolden(scenarioFile string, trace []byte, update bool) (string, error) {
	goldenPath := goldenFilePath(scenarioFile)

	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, trace) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}

// toStoredRun converts a harness result to a run history record.
func toStoredRun(scenarioName string, result *harness.Result, digest string) *store.Run {
	steps := make([]store.Step, len(result.Trace))
	for i, e := range result.Trace {
		steps[i] = store.Step{
			Step:      e.Step,
			Type:      e.Type,
			Method:    e.Method,
			Args:      e.Args,
			Result:    e.Result,
			Assertion: e.Assertion,
			ErrorCode: e.ErrorCode,
			Error:     e.Error,
		}
	}
	return &store.Run{
		Scenario:    scenarioName,
		Seed:        result.Seed,
		Pass:        result.Pass,
		TraceDigest: digest,
		Errors:      result.Errors,
		Steps:       steps,
	}
}

func printScenarioResult(w io.Writer, res ScenarioResult) {
	mark := "✓"
	if !res.Pass {
		mark = "✗"
	}
	suffix := ""
	if res.Golden == GoldenUpdated {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "%s %s (seed %d)%s\n", mark, res.Name, res.Seed, suffix)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
