package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnCreate(t *testing.T) {
	db := testDB(t)
	a := createNode(t, db, "A")
	b := createNode(t, db, "B")

	var c map[string]any
	runJSON(t, db, &c, "conn", "create", "--source", a, "--target", b,
		"--type", "supports", "--strength", "0.01", "--description", " because ")

	assert.Equal(t, a, c["source_id"])
	assert.Equal(t, b, c["target_id"])
	assert.Equal(t, "supports", c["conn_type"])
	assert.Equal(t, 0.1, c["strength"])
	assert.Equal(t, "because", c["description"])
	assert.Equal(t, 1.0, c["version"])
}

func TestConnCreate_Rejections(t *testing.T) {
	db := testDB(t)
	a := createNode(t, db, "A")
	b := createNode(t, db, "B")
	gone := createNode(t, db, "Gone")
	runJSON(t, db, nil, "node", "delete", gone)

	tests := []struct {
		name string
		args []string
	}{
		{"missing_target", []string{"--source", a}},
		{"self_loop", []string{"--source", a, "--target", a}},
		{"bad_type", []string{"--source", a, "--target", b, "--type", "causes"}},
		{"deleted_endpoint", []string{"--source", a, "--target", gone}},
		{"unknown_endpoint", []string{"--source", a, "--target", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, db, "", append([]string{"--format", "json", "conn", "create"}, tt.args...)...)
			assert.Equal(t, ExitCommandError, r.exitCode())
			assert.Equal(t, ErrCodeValidation, r.errorCode(t))
		})
	}

	var conns []map[string]any
	runJSON(t, db, &conns, "conn", "list", "--all")
	assert.Empty(t, conns)
}

func TestConnUpdateAndDelete(t *testing.T) {
	db := testDB(t)
	a := createNode(t, db, "A")
	b := createNode(t, db, "B")

	var c map[string]any
	runJSON(t, db, &c, "conn", "create", "--source", a, "--target", b)
	id := c["id"].(string)

	var updated map[string]any
	runJSON(t, db, &updated, "conn", "update", id, "--type", "opposes")
	assert.Equal(t, "opposes", updated["conn_type"])
	assert.Equal(t, 1.0, updated["strength"])
	assert.Equal(t, 2.0, updated["version"])

	r := run(t, db, "", "--format", "json", "conn", "update", id, "--type", "bogus")
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeValidation, r.errorCode(t))

	r = run(t, db, "", "conn", "delete", id)
	require.NoError(t, r.err)
	assert.Equal(t, "deleted connection "+id+"\n", r.stdout)

	r = run(t, db, "", "--format", "json", "conn", "update", id, "--strength", "2")
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeNotFound, r.errorCode(t))

	r = run(t, db, "", "--format", "json", "conn", "delete", id)
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeNotFound, r.errorCode(t))
}

func TestConnList_TextOutput(t *testing.T) {
	db := testDB(t)
	a := createNode(t, db, "A")
	b := createNode(t, db, "B")

	var c map[string]any
	runJSON(t, db, &c, "conn", "create", "--source", a, "--target", b, "--type", "leads_to", "--strength", "0.5")

	r := run(t, db, "", "conn", "list")
	require.NoError(t, r.err)
	assert.Equal(t, c["id"].(string)+"\tv1\t"+a+" -[leads_to 0.50]-> "+b+"\n", r.stdout)
}
