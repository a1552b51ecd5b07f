package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinkgraph/internal/config"
)

// result is one captured command invocation.
type result struct {
	stdout string
	stderr string
	err    error
}

func (r result) exitCode() int { return GetExitCode(r.err) }

// data decodes the JSON response and returns its data field.
func (r result) data(t *testing.T, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp), r.stdout)
	require.Equal(t, "ok", resp.Status, r.stdout)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// errorCode decodes the JSON error response and returns its code.
func (r result) errorCode(t *testing.T) string {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp), r.stdout)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

// testDB returns a fresh database path and silences logging.
func testDB(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvLogMode, "nop")
	t.Setenv(config.EnvActor, "")
	return filepath.Join(t.TempDir(), "graph.db")
}

func run(t *testing.T, db string, stdin string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// runJSON runs args with --format json and requires success.
func runJSON(t *testing.T, db string, v any, args ...string) {
	t.Helper()
	r := run(t, db, "", append([]string{"--format", "json"}, args...)...)
	require.NoError(t, r.err, "stdout=%s stderr=%s", r.stdout, r.stderr)
	if v != nil {
		r.data(t, v)
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "thinkgraph", cmd.Use)
	assert.Contains(t, cmd.Long, "audit log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"node", "list"}, {"node", "get"}, {"node", "create"}, {"node", "update"}, {"node", "delete"},
		{"conn", "list"}, {"conn", "create"}, {"conn", "update"}, {"conn", "delete"},
		{"graph", "show"}, {"graph", "export"}, {"graph", "import"}, {"graph", "save"},
		{"graph", "load"}, {"graph", "saved"}, {"graph", "delete"}, {"graph", "clear"},
		{"audit", "list"}, {"audit", "export"}, {"audit", "verify"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
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

	for _, name := range []string{"db", "actor", "reason", "config", "metrics-file"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Empty(t, f.DefValue, name)
	}
}

func TestInvalidFormat(t *testing.T) {
	db := testDB(t)
	r := run(t, db, "", "--format", "xml", "node", "list")
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Contains(t, r.stderr, `invalid format "xml"`)
}

func TestInvalidConfigFile(t *testing.T) {
	db := testDB(t)
	r := run(t, db, "", "--format", "json", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "node", "list")
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeConfig, r.errorCode(t))
}

func TestActorFlagOverridesConfig(t *testing.T) {
	db := testDB(t)
	runJSON(t, db, nil, "--actor", "alice", "node", "create", "--content", "Claim")

	var records []map[string]any
	runJSON(t, db, &records, "audit", "list")
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0]["actor"])
}

func TestDefaultActorAndReason(t *testing.T) {
	db := testDB(t)
	runJSON(t, db, nil, "--reason", "first pass", "node", "create", "--content", "Claim")

	var records []map[string]any
	runJSON(t, db, &records, "audit", "list")
	require.Len(t, records, 1)
	assert.Equal(t, config.DefaultActor, records[0]["actor"])
	assert.Equal(t, "first pass", records[0]["reason"])
}

func TestMetricsFile_WrittenAfterCommand(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "thinkgraph.prom")

	r := run(t, db, "", "--metrics-file", path, "node", "create", "--content", "Claim")
	require.NoError(t, r.err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `thinkgraph_mutations_total{action="create",entity="node"}`)
	assert.Contains(t, text, "# TYPE thinkgraph_tx_duration_seconds histogram")
}

func TestMetricsFile_FailureKeepsCommandResult(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "missing", "dir", "thinkgraph.prom")

	r := run(t, db, "", "--metrics-file", path, "node", "list")
	require.NoError(t, r.err)
	assert.NoFileExists(t, path)
}
