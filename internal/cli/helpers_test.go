package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pantry/internal/config"
	"github.com/roach88/pantry/internal/testutil"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testEnv runs commands against a private data directory with a fixed clock
// and sequential item references.
type testEnv struct {
	t       *testing.T
	format  string
	dataDir string
	config  string
	clock   *testutil.FixedClock
	refs    *testutil.SequentialRefs
}

// newTestEnv creates an environment whose config seeds no rooms. extraConfig
// is appended to the config file.
func newTestEnv(t *testing.T, format string, extraConfig string) *testEnv {
	t.Helper()
	isolateConfig(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	doc := "hierarchy:\n  seed_rooms: []\n" + extraConfig
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))

	return &testEnv{
		t:       t,
		format:  format,
		dataDir: filepath.Join(dir, "data"),
		config:  cfgPath,
		clock:   testutil.NewFixedClock(testEpoch),
		refs:    testutil.NewSequentialRefs(),
	}
}

// isolateConfig keeps the developer's own config out of the test.
func isolateConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.EnvPath, "")
}

// run executes args on a fresh root command and returns stdout.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	buf := &bytes.Buffer{}
	opts := &RootOptions{Now: e.clock.Now, Refs: e.refs}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)

	full := append([]string{}, args...)
	full = append(full, "--format", e.format, "--data-dir", e.dataDir, "--no-color")
	if e.config != "" {
		full = append(full, "--config", e.config)
	}
	cmd.SetArgs(full)

	err := cmd.Execute()
	return buf.String(), err
}

// mustRun executes args and fails the test on error.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "pantry %v: %s", args, out)
	return out
}

// decode unmarshals a JSON response, decoding its data into v.
func decode(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v), out)
	}
	return raw.CLIResponse
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
