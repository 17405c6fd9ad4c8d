package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config keys. Each can be set by flag, config file, or RPCSIM_<KEY>.
const (
	KeySeed             = "seed"
	KeyDefaultLatencyMs = "default_latency_ms"
	KeyDatabase         = "db"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	config *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rpcsim CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{config: viper.New()}
	opts.config.SetEnvPrefix("RPCSIM")
	opts.config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.config.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "rpcsim",
		Short: "rpcsim - deterministic RPC client simulation",
		Long: `Run RPC client scenarios against a seeded mock client with simulated
latency, timeouts, rate limits and network failures.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.loadConfig()
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (YAML)")
	flags.Int64(KeySeed, 0, "faker seed (default: from scenario, else entropy)")
	flags.Int64("latency-ms", 0, "default simulated latency in milliseconds")
	flags.String(KeyDatabase, "", "path to SQLite run history")

	_ = opts.config.BindPFlag(KeySeed, flags.Lookup(KeySeed))
	_ = opts.config.BindPFlag(KeyDefaultLatencyMs, flags.Lookup("latency-ms"))
	_ = opts.config.BindPFlag(KeyDatabase, flags.Lookup(KeyDatabase))

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFakeCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// loadConfig reads the --config file when one was given.
func (o *RootOptions) loadConfig() error {
	if o.ConfigFile == "" {
		return nil
	}
	o.config.SetConfigFile(o.ConfigFile)
	if err := o.config.ReadInConfig(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	return nil
}

// Seed returns the configured faker seed, or nil when none is set.
func (o *RootOptions) Seed() *int64 {
	if o.config == nil || !o.config.IsSet(KeySeed) {
		return nil
	}
	seed := o.config.GetInt64(KeySeed)
	return &seed
}

// DefaultLatencyMs returns the configured default latency.
func (o *RootOptions) DefaultLatencyMs() int64 {
	if o.config == nil {
		return 0
	}
	return o.config.GetInt64(KeyDefaultLatencyMs)
}

// Database returns the configured run history path, or "".
func (o *RootOptions) Database() string {
	if o.config == nil {
		return ""
	}
	return o.config.GetString(KeyDatabase)
}

// Logger returns a text logger on w: Debug when verbose, Warn otherwise.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// contextOrBackground returns ctx, or context.Background when a command is
// executed without one.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
