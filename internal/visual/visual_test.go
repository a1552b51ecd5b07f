package visual

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thinkgraph/internal/graph"
)

func fixtureGraph() ([]graph.Node, []graph.Connection) {
	nodes := []graph.Node{
		{ID: "n1", Content: "Remote work improves focus", Position: graph.Position{X: 10, Y: -4}, Color: "#157f83", Size: 1, Confidence: 0.8},
		{ID: "n2", Content: "Productivity increases", Summary: "productivity", Color: "#ff8800", Size: 0.05, Confidence: 1},
	}
	conns := []graph.Connection{
		{ID: "c1", SourceID: "n1", TargetID: "n2", ConnType: graph.ConnSupports, Description: "observed", Strength: 1},
		{ID: "c2", SourceID: "n2", TargetID: "n1", ConnType: "contradicts", Strength: 0.01},
	}
	return nodes, conns
}

func TestProject_Golden(t *testing.T) {
	nodes, conns := fixtureGraph()

	data, err := json.MarshalIndent(Project(nodes, conns), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "project", data)
}

func TestProject_Label(t *testing.T) {
	p := Project([]graph.Node{
		{ID: "a", Content: "short"},
		{ID: "b", Content: "\u00fc" + "abcdefghijklmnopqrstuvwxyz"},
		{ID: "c", Content: "ignored", Summary: "sum"},
	}, nil)

	assert.Equal(t, "short", p.Nodes[0].Label)
	assert.Equal(t, "\u00fcabcdefghijklmnopqrstuvw", p.Nodes[1].Label)
	assert.Len(t, []rune(p.Nodes[1].Label), LabelLength)
	assert.Equal(t, "sum", p.Nodes[2].Label)
}

func TestProject_Empty(t *testing.T) {
	data, err := json.Marshal(Project(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, string(data))
}

func TestEdgeColor(t *testing.T) {
	for _, ct := range graph.ConnTypes {
		assert.NotEmpty(t, EdgeColor(ct))
	}
	assert.Equal(t, "#d1495b", EdgeColor(graph.ConnOpposes))
	assert.Equal(t, NeutralEdgeColor, EdgeColor("unknown"))
}
