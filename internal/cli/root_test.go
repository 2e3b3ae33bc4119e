package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pantry", cmd.Use)
	assert.Contains(t, cmd.Long, "storage spaces")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"},
		{"room", "list"}, {"room", "show"}, {"room", "add"}, {"room", "delete"}, {"room", "rename"},
		{"space", "list"}, {"space", "show"}, {"space", "add"}, {"space", "update"}, {"space", "delete"}, {"space", "rename"},
		{"floor", "add"}, {"floor", "delete"},
		{"compartment", "add"}, {"compartment", "delete"}, {"compartment", "rename"},
		{"tree"}, {"check"},
		{"item", "add"}, {"item", "list"}, {"item", "show"}, {"item", "barcode"}, {"item", "update"},
		{"item", "consume"}, {"item", "delete"}, {"item", "expiring"}, {"item", "stats"},
		{"activity", "recent"}, {"activity", "prune"},
		{"settings", "show"}, {"settings", "set"},
		{"lookup"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-color"))
}

func TestCompartmentFloorFlag(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"compartment", "add"})
	require.NoError(t, err)

	floorFlag := addCmd.InheritedFlags().Lookup("floor")
	require.NotNil(t, floorFlag)
	assert.Equal(t, "0", floorFlag.DefValue)

	group, _, err := cmd.Find([]string{"compartment"})
	require.NoError(t, err)
	groupFlag := group.PersistentFlags().Lookup("floor")
	require.NotNil(t, groupFlag)
	assert.Equal(t, floorFlag.Name, groupFlag.Name)
}

func TestInvalidFormat(t *testing.T) {
	isolateConfig(t)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"room", "list", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `invalid format "yaml"`)
}

func TestExplicitConfigMissing(t *testing.T) {
	isolateConfig(t)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"room", "list", "--format", "json", "--config", "/nonexistent/pantry.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decode(t, buf.String(), nil)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestInvalidConfig(t *testing.T) {
	e := newTestEnv(t, "json", "logging:\n  level: loud\n")

	out, err := e.run("room", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decode(t, out, nil)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}
