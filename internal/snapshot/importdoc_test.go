package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinkgraph/internal/graph"
)

func TestDecodeImport_Valid(t *testing.T) {
	p, err := DecodeImport([]byte(`{
		"format": "thinking-graph-export-v1",
		"reason": "migrate",
		"nodes": [{"id": "a", "content": "A", "position": {"x": 1, "y": "2"}, "tags": ["t"]}],
		"connections": [{"id": "c", "source_id": "a", "target_id": "b", "strength": 0.5}]
	}`))
	require.NoError(t, err)

	assert.True(t, p.HasGraphData())
	assert.Equal(t, "migrate", p.Reason)
	require.Len(t, p.Nodes, 1)
	require.Len(t, p.Connections, 1)

	nodes, conns, err := p.Entities()
	require.NoError(t, err)
	assert.Equal(t, graph.Position{X: 1, Y: 2}, nodes[0].Position)
	assert.Equal(t, []string{"t"}, nodes[0].Tags)
	assert.Equal(t, 0.5, conns[0].Strength)
}

func TestDecodeImport_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":            "   ",
		"malformed":        `{"nodes": [`,
		"top-level list":   `[{"content": "A"}]`,
		"nodes not a list": `{"nodes": {"content": "A"}}`,
		"node not object":  `{"nodes": ["A"]}`,
		"content number":   `{"nodes": [{"content": 3}]}`,
		"reason number":    `{"nodes": [], "reason": 7}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImport([]byte(doc))
			require.Error(t, err)
			assert.True(t, graph.IsValidationError(err), "got %v", err)
		})
	}
}

func TestImportPayload_PresenceDetection(t *testing.T) {
	var p ImportPayload
	require.NoError(t, json.Unmarshal([]byte(`{"reason": "x"}`), &p))
	assert.False(t, p.HasGraphData())

	require.NoError(t, json.Unmarshal([]byte(`{"nodes": null}`), &p))
	assert.False(t, p.HasGraphData())

	require.NoError(t, json.Unmarshal([]byte(`{"connections": []}`), &p))
	assert.True(t, p.HasGraphData())

	assert.False(t, NewImportPayload(nil, nil).HasGraphData())
	assert.True(t, NewImportPayload([]graph.State{}, nil).HasGraphData())
}
