package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/thinkgraph/internal/graph"
)

// importSchema constrains the shape of an import document. Field values
// stay loosely typed: the entity codec coerces them, so only structure and
// the fields that cannot be coerced are checked here. Unknown fields, such
// as the metadata of an export document, are allowed.
const importSchema = `
#Position: {
	x?: number | string | null
	y?: number | string | null
	...
}

#Node: {
	id?:       string | number
	content?:  string
	summary?:  string | null
	position?: #Position | null
	tags?:     [...] | null
	evidence?: [...] | null
	...
}

#Connection: {
	id?:          string | number
	source_id?:   string | number
	target_id?:   string | number
	conn_type?:   string | null
	description?: string | null
	...
}

#Import: {
	nodes?:       [...#Node] | null
	connections?: [...#Connection] | null
	reason?:      string | null
	...
}
`

// ImportPayload is caller-supplied graph content. It records whether the
// nodes and connections fields were present at all, so an explicitly empty
// list (clear and restore nothing) differs from a missing one.
type ImportPayload struct {
	Nodes       []graph.State
	Connections []graph.State
	Reason      string

	hasNodes       bool
	hasConnections bool
}

// NewImportPayload builds a payload from in-memory states. A nil slice
// counts as absent.
func NewImportPayload(nodes, conns []graph.State) ImportPayload {
	return ImportPayload{
		Nodes:          nodes,
		Connections:    conns,
		hasNodes:       nodes != nil,
		hasConnections: conns != nil,
	}
}

// HasGraphData reports whether nodes or connections were supplied.
func (p ImportPayload) HasGraphData() bool {
	return p.hasNodes || p.hasConnections
}

// UnmarshalJSON implements json.Unmarshaler. A null field counts as absent.
func (p *ImportPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ImportPayload{}

	if v, ok := raw["nodes"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &p.Nodes); err != nil {
			return fmt.Errorf("nodes: %w", err)
		}
		p.hasNodes = true
	}
	if v, ok := raw["connections"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &p.Connections); err != nil {
			return fmt.Errorf("connections: %w", err)
		}
		p.hasConnections = true
	}
	if v, ok := raw["reason"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &p.Reason); err != nil {
			return fmt.Errorf("reason: %w", err)
		}
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Entities converts the payload states into entities. Every node needs
// non-empty content.
func (p ImportPayload) Entities() ([]graph.Node, []graph.Connection, error) {
	nodes := make([]graph.Node, 0, len(p.Nodes))
	for i, s := range p.Nodes {
		n := graph.NodeFromState(s)
		if graph.CleanText(n.Content) == "" {
			return nil, nil, graph.NewValidationError(fmt.Sprintf("nodes[%d].content", i), "`content` is required")
		}
		nodes = append(nodes, n)
	}
	conns := make([]graph.Connection, 0, len(p.Connections))
	for _, s := range p.Connections {
		conns = append(conns, graph.ConnectionFromState(s))
	}
	return nodes, conns, nil
}

// DecodeImport checks data against the import schema and decodes it.
// Structural problems are reported as a graph.ValidationError.
func DecodeImport(data []byte) (ImportPayload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ImportPayload{}, graph.NewValidationError("payload", "import document is empty")
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(importSchema)
	if err := schema.Err(); err != nil {
		return ImportPayload{}, fmt.Errorf("compile import schema: %w", err)
	}

	doc := cctx.CompileBytes(data)
	if err := doc.Err(); err != nil {
		return ImportPayload{}, graph.NewValidationError("payload", "malformed import document: "+firstCUEError(err))
	}

	v := schema.LookupPath(cue.ParsePath("#Import")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ImportPayload{}, graph.NewValidationError("payload", firstCUEError(err))
	}

	var p ImportPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ImportPayload{}, graph.NewValidationError("payload", err.Error())
	}
	return p, nil
}

func firstCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}
