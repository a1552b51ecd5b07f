package graph

import (
	"time"
)

// ConnType is the relation carried by a Connection.
type ConnType string

const (
	ConnSupports    ConnType = "supports"
	ConnOpposes     ConnType = "opposes"
	ConnRelates     ConnType = "relates"
	ConnLeadsTo     ConnType = "leads_to"
	ConnDerivesFrom ConnType = "derives_from"
)

// ConnTypes lists the accepted connection types in display order.
var ConnTypes = []ConnType{ConnSupports, ConnOpposes, ConnRelates, ConnLeadsTo, ConnDerivesFrom}

// Valid reports whether t is one of the fixed connection types.
func (t ConnType) Valid() bool {
	for _, known := range ConnTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EntityType identifies the table an audit entry refers to.
type EntityType string

const (
	EntityNode       EntityType = "node"
	EntityConnection EntityType = "connection"
)

// Action is an audited lifecycle event.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Defaults applied when a payload or imported state omits a field.
const (
	DefaultColor      = "#157f83"
	DefaultSize       = 1.0
	DefaultConfidence = 1.0
	DefaultStrength   = 1.0
	DefaultConnType   = ConnRelates
)

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a claim in the thinking graph.
type Node struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	Position   Position  `json:"position"`
	Color      string    `json:"color"`
	Size       float64   `json:"size"`
	Tags       []string  `json:"tags"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"evidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
	IsDeleted  bool      `json:"is_deleted"`
}

// Connection is a typed, directed edge between two nodes.
// SourceID and TargetID are fixed at creation.
type Connection struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	TargetID    string    `json:"target_id"`
	ConnType    ConnType  `json:"conn_type"`
	Description string    `json:"description"`
	Strength    float64   `json:"strength"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
	IsDeleted   bool      `json:"is_deleted"`
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Tags = append([]string(nil), n.Tags...)
	out.Evidence = append([]string(nil), n.Evidence...)
	return out
}

// Tombstone returns the soft-deleted successor of n at time at.
func (n Node) Tombstone(at time.Time) Node {
	out := n.Clone()
	out.IsDeleted = true
	out.Version = n.Version + 1
	out.UpdatedAt = at
	return out
}

// Tombstone returns the soft-deleted successor of c at time at.
func (c Connection) Tombstone(at time.Time) Connection {
	out := c
	out.IsDeleted = true
	out.Version = c.Version + 1
	out.UpdatedAt = at
	return out
}
