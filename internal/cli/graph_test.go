package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinkgraph/internal/snapshot"
)

func seedGraph(t *testing.T, db string) (string, string) {
	t.Helper()
	a := createNode(t, db, "A")
	b := createNode(t, db, "B")
	runJSON(t, db, nil, "conn", "create", "--source", a, "--target", b, "--type", "supports")
	return a, b
}

func TestGraphShow(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db)

	var snap struct {
		Nodes         []map[string]any `json:"nodes"`
		Connections   []map[string]any `json:"connections"`
		Visualization struct {
			Nodes []map[string]any `json:"nodes"`
			Edges []map[string]any `json:"edges"`
		} `json:"visualization"`
	}
	runJSON(t, db, &snap, "graph", "show")
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Connections, 1)
	assert.Len(t, snap.Visualization.Nodes, 2)
	require.Len(t, snap.Visualization.Edges, 1)
	assert.Equal(t, "#2d936c", snap.Visualization.Edges[0]["color"])

	r := run(t, db, "", "graph", "show")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "2 nodes, 1 connections\n")
}

func TestGraphExport_StdoutIsDocument(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db)

	r := run(t, db, "", "graph", "export")
	require.NoError(t, r.err)

	var exp snapshot.Export
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &exp))
	assert.Equal(t, snapshot.ExportFormat, exp.Format)
	assert.Equal(t, 2, exp.NodeCount)
	assert.Equal(t, 1, exp.ConnectionCount)
}

func TestGraphExportClearImport_RoundTrip(t *testing.T) {
	db := testDB(t)
	a, b := seedGraph(t, db)
	path := filepath.Join(t.TempDir(), "backup.json")

	var written map[string]any
	runJSON(t, db, &written, "graph", "export", "--output", path)
	assert.Equal(t, path, written["path"])
	assert.Equal(t, 3.0, written["records"])

	var cleared snapshot.ClearResult
	runJSON(t, db, &cleared, "graph", "clear")
	assert.Equal(t, 2, cleared.ClearedNodes)
	assert.Equal(t, 1, cleared.ClearedConnections)

	var imported snapshot.ImportResult
	runJSON(t, db, &imported, "--reason", "restore backup", "graph", "import", path)
	assert.Equal(t, 2, imported.NodeCount)
	assert.Equal(t, 1, imported.ConnectionCount)

	var nodes []map[string]any
	runJSON(t, db, &nodes, "node", "list")
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.NotEqual(t, a, n["id"])
		assert.NotEqual(t, b, n["id"])
	}
	assert.Equal(t, "A", nodes[0]["content"])
	assert.Equal(t, "B", nodes[1]["content"])

	r := run(t, db, "", "audit", "verify")
	require.NoError(t, r.err)
	assert.Equal(t, "audit log OK\n", r.stdout)
}

func TestGraphImport_Stdin(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db)

	r := run(t, db, `{"nodes":[{"id":"x","content":"Hi"}],"connections":[]}`, "--format", "json", "graph", "import", "-")
	require.NoError(t, r.err, r.stdout)

	var nodes []map[string]any
	runJSON(t, db, &nodes, "node", "list")
	require.Len(t, nodes, 1)
	assert.Equal(t, "Hi", nodes[0]["content"])
}

func TestGraphImport_Rejections(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not_json", "{nodes"},
		{"wrong_shape", `{"nodes": 5}`},
		{"no_graph_data", `{"reason": "x"}`},
		{"blank_content", `{"nodes":[{"id":"x","content":" "}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, db, tt.input, "--format", "json", "graph", "import", "-")
			assert.Equal(t, ExitCommandError, r.exitCode())
			assert.Equal(t, ErrCodeValidation, r.errorCode(t))
		})
	}

	var nodes []map[string]any
	runJSON(t, db, &nodes, "node", "list")
	assert.Len(t, nodes, 2)
}

func TestGraphImport_MissingFile(t *testing.T) {
	db := testDB(t)

	r := run(t, db, "", "--format", "json", "graph", "import", filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeIO, r.errorCode(t))
}

func TestGraphSaveLoadDelete(t *testing.T) {
	db := testDB(t)
	seedGraph(t, db)

	var saved snapshot.SaveResult
	runJSON(t, db, &saved, "graph", "save", " checkpoint ")
	assert.Equal(t, "checkpoint", saved.Name)
	assert.Equal(t, 2, saved.NodeCount)
	assert.Equal(t, 1, saved.ConnectionCount)

	createNode(t, db, "C")

	var list []snapshot.SavedGraph
	runJSON(t, db, &list, "graph", "saved")
	require.Len(t, list, 1)
	assert.Equal(t, "checkpoint", list[0].Name)

	var loaded struct {
		Name     string `json:"name"`
		Snapshot struct {
			Nodes       []map[string]any `json:"nodes"`
			Connections []map[string]any `json:"connections"`
		} `json:"snapshot"`
	}
	runJSON(t, db, &loaded, "graph", "load", "checkpoint")
	assert.Equal(t, "checkpoint", loaded.Name)
	assert.Len(t, loaded.Snapshot.Nodes, 2)
	assert.Len(t, loaded.Snapshot.Connections, 1)

	r := run(t, db, "", "graph", "delete", "checkpoint")
	require.NoError(t, r.err)
	assert.Equal(t, "deleted saved graph \"checkpoint\"\n", r.stdout)

	runJSON(t, db, &list, "graph", "saved")
	assert.Empty(t, list)
}

func TestGraphSnapshots_Rejections(t *testing.T) {
	db := testDB(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"save_blank_name", []string{"graph", "save", "  "}, ErrCodeValidation},
		{"load_unknown", []string{"graph", "load", "nope"}, ErrCodeNotFound},
		{"delete_unknown", []string{"graph", "delete", "nope"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, db, "", append([]string{"--format", "json"}, tt.args...)...)
			assert.Equal(t, ExitCommandError, r.exitCode())
			assert.Equal(t, tt.wantCode, r.errorCode(t))
		})
	}
}

func TestGraphExport_UnwritableOutput(t *testing.T) {
	db := testDB(t)
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	r := run(t, db, "", "--format", "json", "graph", "export", "--output", filepath.Join(dir, "out.json"))
	assert.Equal(t, ExitCommandError, r.exitCode())
	assert.Equal(t, ErrCodeIO, r.errorCode(t))
}
