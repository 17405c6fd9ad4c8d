package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rpcsim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Scenario string
	Method   string // optional - filter steps to one method
	Limit    int
}

// TraceStats holds summary statistics for a stored run.
type TraceStats struct {
	Steps       int `json:"steps"`
	Calls       int `json:"calls"`
	FailedCalls int `json:"failed_calls"`
	Assertions  int `json:"assertions"`
}

// TraceResult is a stored run with its statistics.
type TraceResult struct {
	Run   *store.Run `json:"run"`
	Stats TraceStats `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id|latest]",
		Short: "Show recorded scenario runs",
		Long: `Show scenario runs recorded with "rpcsim run --db".

Without an argument, lists runs newest first. With a run ID, prints that
run's steps; "latest" picks the newest run (of --scenario, if given).

Examples:
  rpcsim trace --db ./runs.db
  rpcsim trace --db ./runs.db --scenario balance --limit 5
  rpcsim trace --db ./runs.db latest --scenario balance
  rpcsim trace --db ./runs.db 0191e3c4-... --method getAccountBalance --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runTrace(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "filter to one scenario name")
	cmd.Flags().StringVar(&opts.Method, "method", "", "filter steps to one method")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, id string, cmd *cobra.Command) error {
	db := opts.Database()
	if db == "" {
		return NewExitError(ExitCommandError, "--db is required (flag, config file, or RPCSIM_DB)")
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := contextOrBackground(cmd.Context())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if id == "" {
		runs, err := st.ListRuns(ctx, opts.Scenario, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: runs})
		}
		outputRunList(cmd.OutOrStdout(), runs)
		return nil
	}

	var run *store.Run
	if id == "latest" {
		run, err = st.LatestRun(ctx, opts.Scenario)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if ferr := formatter.Error(ErrCodeNotFound, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Method != "" {
		run.Steps, err = st.StepsForMethod(ctx, run.ID, opts.Method)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read steps", err)
		}
	}

	result := TraceResult{Run: run, Stats: traceStats(run.Steps)}
	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func traceStats(steps []store.Step) TraceStats {
	stats := TraceStats{Steps: len(steps)}
	for _, s := range steps {
		switch s.Type {
		case "call":
			stats.Calls++
			if s.ErrorCode != "" || s.Error != "" {
				stats.FailedCalls++
			}
		case "assert":
			stats.Assertions++
		}
	}
	return stats
}

func outputRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %-4s  seed=%d  %s\n",
			r.ID,
			time.UnixMilli(r.StartedAt).UTC().Format(time.RFC3339),
			passStatus(r.Pass),
			r.Seed,
			r.Scenario,
		)
	}
}

// outputTraceText outputs a stored run as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s (seed %d)\n", run.Scenario, run.Seed)
	fmt.Fprintf(w, "Status: %s\n", passStatus(run.Pass))
	fmt.Fprintf(w, "Trace digest: %s\n", truncateID(run.TraceDigest))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Steps ===")
	if len(run.Steps) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	}
	for _, s := range run.Steps {
		formatStep(w, s, verbose)
	}
	fmt.Fprintln(w)

	if len(run.Errors) > 0 {
		fmt.Fprintln(w, "=== Errors ===")
		for _, e := range run.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Steps:        %d\n", result.Stats.Steps)
	fmt.Fprintf(w, "  Calls:        %d\n", result.Stats.Calls)
	fmt.Fprintf(w, "  Failed calls: %d\n", result.Stats.FailedCalls)
	fmt.Fprintf(w, "  Assertions:   %d\n", result.Stats.Assertions)
}

// formatStep formats a single step for text output.
func formatStep(w io.Writer, s store.Step, verbose bool) {
	switch s.Type {
	case "call":
		fmt.Fprintf(w, "  [%d] CALL %s(%s)\n", s.Step, s.Method, formatValues(s.Args))
		if s.ErrorCode != "" || s.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", s.Error)
		} else if s.Result != nil {
			fmt.Fprintf(w, "       Result: %s\n", formatValue(s.Result))
		}
	case "assert":
		fmt.Fprintf(w, "  [%d] ASSERT %s %s\n", s.Step, s.Assertion, s.Method)
		if s.Error != "" {
			fmt.Fprintf(w, "       Failed: %s\n", firstLine(s.Error))
		}
	default:
		fmt.Fprintf(w, "  [%d] %s %s\n", s.Step, strings.ToUpper(s.Type), s.Method)
	}
	if verbose {
		fmt.Fprintf(w, "       Digest: %s\n", truncateID(s.Digest))
	}
}

func formatValues(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		return "[" + formatValues(val) + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
