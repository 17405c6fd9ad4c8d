package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rpcsim/internal/canon"
	"github.com/roach88/rpcsim/internal/faker"
)

// FakeOptions holds flags for the fake command.
type FakeOptions struct {
	*RootOptions
	Count int
}

// FakeResult lists generated values.
type FakeResult struct {
	Seed     int64  `json:"seed"`
	Category string `json:"category"`
	Values   []any  `json:"values"`
}

var fakeCategories = []string{
	string(faker.CategoryAddress),
	string(faker.CategoryBalance),
	string(faker.CategoryHash),
	string(faker.CategoryTransaction),
}

// NewFakeCommand creates the fake command.
func NewFakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FakeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fake <address|balance|hash|transaction>",
		Short: "Print seeded fake values",
		Long: `Print values from the deterministic faker.

The same --seed always prints the same values, matching what an unmocked
harness call with that seed returns.

Examples:
  rpcsim fake address --seed 42
  rpcsim fake transaction --seed 7 --count 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFake(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of values")

	return cmd
}

func runFake(opts *FakeOptions, category string, cmd *cobra.Command) error {
	if !slices.Contains(fakeCategories, category) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown category %q: must be one of %v", category, fakeCategories))
	}
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, "--count must be at least 1")
	}

	var f *faker.Faker
	if seed := opts.Seed(); seed != nil {
		f = faker.New(*seed)
	} else {
		f = faker.NewFromEntropy()
	}

	result := FakeResult{Seed: f.Seed(), Category: category, Values: make([]any, 0, opts.Count)}
	for i := 0; i < opts.Count; i++ {
		result.Values = append(result.Values, draw(f, faker.Category(category)))
	}

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).JSON(CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	for _, v := range result.Values {
		if s, ok := v.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := canon.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func draw(f *faker.Faker, category faker.Category) any {
	switch category {
	case faker.CategoryAddress:
		return f.Address()
	case faker.CategoryBalance:
		return f.Balance()
	case faker.CategoryHash:
		return f.Hash()
	default:
		return f.Transaction()
	}
}
