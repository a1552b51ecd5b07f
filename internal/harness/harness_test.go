package harness

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return scenario
}

func TestRun_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TraceAndBindings(t *testing.T) {
	scenario := mustParse(t, `
name: bindings
description: "Ids are sequential and bound by alias"
actor: carol
flow:
  - op: node.create
    as: a
    args: {content: "A"}
  - op: node.create
    as: b
    args: {content: "B"}
  - op: conn.create
    as: link
    reason: "obvious"
    args: {source_id: $a, target_id: $b}
assertions:
  - type: audit_contains
    entity: connection
    id: $link
    action: create
    reason: "obvious"
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, map[string]string{"a": "id-0001", "b": "id-0002", "link": "id-0003"}, result.Bindings)
	require.Len(t, result.Trace, 3)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, "carol", ev.Actor)
		assert.Equal(t, "create", ev.Action)
	}
	assert.Equal(t, "connection", result.Trace[2].EntityType)
	assert.Equal(t, "obvious", result.Trace[2].Reason)
	assert.Empty(t, result.Trace[0].Reason)
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	scenario := mustParse(t, `
name: failing
description: "Every assertion here is wrong"
flow:
  - op: node.create
    as: a
    args: {content: "A"}
assertions:
  - type: audit_contains
    entity: node
    action: delete
  - type: audit_count
    action: create
    count: 2
  - type: live_count
    nodes: 5
  - type: final_state
    table: nodes
    where: {id: $a}
    expect: {content: "B"}
  - type: final_state
    table: nodes
    where: {id: "nope"}
    expect: {content: "A"}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "not found in audit trace")
	assert.Contains(t, result.Errors[1], "1 entries")
	assert.Contains(t, result.Errors[2], "1 live nodes")
	assert.Contains(t, result.Errors[3], "nodes.content = B")
	assert.Contains(t, result.Errors[4], "row not found")
}

func TestRun_AuditOrderMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: order
description: "Entries listed in the wrong order"
flow:
  - op: node.create
    as: a
    args: {content: "A"}
  - op: node.create
    as: b
    args: {content: "B"}
assertions:
  - type: audit_order
    entries: ["create node:$b", "create node:$a"]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `"create node:$a" not found`)
}

func TestRun_OutcomeMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: outcome
description: "Expected failures that succeed and vice versa"
flow:
  - op: node.create
    args: {content: "A"}
    expect: {outcome: validation}
  - op: node.delete
    id: missing
  - op: node.create
    args: {content: "B"}
    expect:
      outcome: ok
      result: {content: "C"}
assertions:
  - type: integrity_ok
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected outcome validation, got ok")
	assert.Contains(t, result.Errors[1], "expected outcome ok, got not_found")
	assert.Contains(t, result.Errors[2], `result field "content" = B, want C`)
}

func TestRun_UnboundReference(t *testing.T) {
	scenario := mustParse(t, `
name: unbound
description: "References an alias that was never bound"
flow:
  - op: node.delete
    id: $ghost
assertions:
  - type: integrity_ok
`)

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound reference $ghost")
}

func TestRun_RejectsUnsafeIdentifiers(t *testing.T) {
	scenario := mustParse(t, `
name: unsafe
description: "Table names are never interpolated unchecked"
flow:
  - op: node.create
    args: {content: "A"}
assertions:
  - type: final_state
    table: "nodes; DROP TABLE audits"
    expect: {content: "A"}
  - type: final_state
    table: nodes
    where: {"id OR 1=1": "x"}
    expect: {content: "A"}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "invalid table name")
	assert.Contains(t, result.Errors[1], "invalid column name")
}

func TestAssertionError_Error(t *testing.T) {
	err := &AssertionError{
		Type:     AssertAuditContains,
		Expected: "delete node:a",
		Actual:   "not found in audit trace",
		Trace: []TraceEvent{
			{Seq: 1, EntityType: "node", EntityID: "a", Action: "create"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: audit_contains")
	assert.Contains(t, msg, "Expected: delete node:a")
	assert.Contains(t, msg, "[1] create node:a")
}

func TestRun_TraceIsNotTruncated(t *testing.T) {
	const steps = 1205
	scenario := &Scenario{
		Name:        "long",
		Description: "More audit entries than a single audit page holds",
		Actor:       DefaultActor,
		Assertions:  []Assertion{{Type: AssertAuditCount, Action: "create", Count: intPtr(steps)}},
	}
	for i := range steps {
		scenario.Flow = append(scenario.Flow, Step{
			Op:   "node.create",
			Args: map[string]any{"content": fmt.Sprintf("claim %d", i)},
		})
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, steps)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "id-0001", result.Trace[0].EntityID)
	assert.Equal(t, int64(steps), result.Trace[steps-1].Seq)
	assert.Equal(t, fmt.Sprintf("id-%04d", steps), result.Trace[steps-1].EntityID)
}

func intPtr(n int) *int { return &n }
