package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rpcsim/internal/faker"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rpcsim", cmd.Use)
	assert.Contains(t, cmd.Long, "seeded mock client")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"run", "call", "validate", "fake", "trace"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	for _, name := range []string{"config", "seed", "latency-ms", "db"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, "", "--format", "invalid", "fake", "address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeedPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "rpcsim.yaml", "seed: 9\n")

	t.Run("flag", func(t *testing.T) {
		out, _, err := execute(t, "", "fake", "address", "--seed", "42")
		require.NoError(t, err)
		assert.Equal(t, faker.New(42).Address()+"\n", out)
	})

	t.Run("config file", func(t *testing.T) {
		out, _, err := execute(t, "", "fake", "address", "--config", cfgPath)
		require.NoError(t, err)
		assert.Equal(t, faker.New(9).Address()+"\n", out)
	})

	t.Run("env beats config file", func(t *testing.T) {
		t.Setenv("RPCSIM_SEED", "11")
		out, _, err := execute(t, "", "fake", "address", "--config", cfgPath)
		require.NoError(t, err)
		assert.Equal(t, faker.New(11).Address()+"\n", out)
	})

	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv("RPCSIM_SEED", "11")
		out, _, err := execute(t, "", "fake", "address", "--seed", "5")
		require.NoError(t, err)
		assert.Equal(t, faker.New(5).Address()+"\n", out)
	})
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "", "fake", "address", "--config", "/nonexistent/rpcsim.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptionsWithoutConfig(t *testing.T) {
	opts := &RootOptions{}
	assert.Nil(t, opts.Seed())
	assert.Zero(t, opts.DefaultLatencyMs())
	assert.Empty(t, opts.Database())
}
