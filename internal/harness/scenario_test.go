package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One node"
flow:
  - op: node.create
    args:
      content: "A"
assertions:
  - type: live_count
    nodes: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, DefaultActor, scenario.Actor)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, "node.create", scenario.Flow[0].Op)
	assert.Equal(t, "A", scenario.Flow[0].Args["content"])
	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].Nodes)
	assert.Equal(t, 1, *scenario.Assertions[0].Nodes)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "\nsetup: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: integrity_ok}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: x
flow: [{op: graph.clear}]
assertions: [{type: integrity_ok}]
`,
			wantErr: "description is required",
		},
		{
			name: "empty flow",
			yaml: `
name: x
description: "x"
flow: []
assertions: [{type: integrity_ok}]
`,
			wantErr: "flow list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "unknown op",
			yaml: `
name: x
description: "x"
flow: [{op: node.merge}]
assertions: [{type: integrity_ok}]
`,
			wantErr: `unknown op "node.merge"`,
		},
		{
			name: "unknown outcome",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear, expect: {outcome: conflict}}]
assertions: [{type: integrity_ok}]
`,
			wantErr: `unknown outcome "conflict"`,
		},
		{
			name: "unknown assertion",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "audit_contains without action",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: audit_contains, entity: node}]
`,
			wantErr: "action is required",
		},
		{
			name: "audit_count without count",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: audit_count, action: create}]
`,
			wantErr: "non-negative count is required",
		},
		{
			name: "audit_order with one entry",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: audit_order, entries: ["create node:a"]}]
`,
			wantErr: "at least two entries",
		},
		{
			name: "final_state without expect",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: final_state, table: nodes}]
`,
			wantErr: "expect is required",
		},
		{
			name: "live_count without counts",
			yaml: `
name: x
description: "x"
flow: [{op: graph.clear}]
assertions: [{type: live_count}]
`,
			wantErr: "nodes or connections is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
