// Package visual projects graph entities into the node/edge datasets a
// network-graph renderer consumes. It holds no state and never fails.
package visual

import (
	"github.com/roach88/thinkgraph/internal/graph"
)

// LabelLength is how many runes of content form a label when a node has no
// summary.
const LabelLength = 24

// NeutralEdgeColor is used for connection types without a palette entry.
const NeutralEdgeColor = "#6c757d"

var edgeColors = map[graph.ConnType]string{
	graph.ConnSupports:    "#2d936c",
	graph.ConnOpposes:     "#d1495b",
	graph.ConnRelates:     "#6c757d",
	graph.ConnLeadsTo:     "#f4a259",
	graph.ConnDerivesFrom: "#3f88c5",
}

// Node is a renderable vertex.
type Node struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Title      string  `json:"title"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Color      string  `json:"color"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Edge is a renderable directed edge.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Label  string  `json:"label"`
	Title  string  `json:"title"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

// Payload is the renderer input. Both slices are non-nil.
type Payload struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EdgeColor returns the palette color for t.
func EdgeColor(t graph.ConnType) string {
	if c, ok := edgeColors[t]; ok {
		return c
	}
	return NeutralEdgeColor
}

// Project converts nodes and connections, preserving their order.
func Project(nodes []graph.Node, conns []graph.Connection) Payload {
	out := Payload{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(conns)),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, Node{
			ID:         n.ID,
			Label:      label(n),
			Title:      n.Content,
			X:          n.Position.X,
			Y:          n.Position.Y,
			Color:      n.Color,
			Value:      graph.FloorSize(n.Size),
			Confidence: n.Confidence,
		})
	}
	for _, c := range conns {
		out.Edges = append(out.Edges, Edge{
			ID:     c.ID,
			Source: c.SourceID,
			Target: c.TargetID,
			Label:  string(c.ConnType),
			Title:  c.Description,
			Color:  EdgeColor(c.ConnType),
			Width:  graph.FloorStrength(c.Strength) * 2,
		})
	}
	return out
}

func label(n graph.Node) string {
	if n.Summary != "" {
		return n.Summary
	}
	runes := []rune(n.Content)
	if len(runes) > LabelLength {
		runes = runes[:LabelLength]
	}
	return string(runes)
}
