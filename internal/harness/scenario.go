package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end run against a fresh graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Actor is recorded on every step. Defaults to DefaultActor.
	Actor string `yaml:"actor,omitempty"`

	// Flow is executed in order.
	Flow []Step `yaml:"flow"`

	// Assertions are evaluated after the whole flow has run.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultActor is used when a scenario names no actor.
const DefaultActor = "harness"

// Step invokes one store or snapshot operation.
type Step struct {
	// Op names the operation, e.g. "node.create".
	Op string `yaml:"op"`

	// As binds the id (or name) the step produces for later $references.
	As string `yaml:"as,omitempty"`

	// ID targets an existing entity for update and delete operations.
	ID string `yaml:"id,omitempty"`

	// Name targets a saved snapshot for the graph.save/load/delete_saved ops.
	Name string `yaml:"name,omitempty"`

	// Reason is recorded on the audit entries the step writes.
	Reason string `yaml:"reason,omitempty"`

	// Args is the request payload.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect checks the step outcome. Nil means the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a step.
type Expect struct {
	// Outcome is one of OutcomeOK, OutcomeValidation, OutcomeNotFound.
	Outcome string `yaml:"outcome"`

	// Result is a subset of the returned entity state or operation result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Step outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
)

// Assertion validates the audit trail or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Entity, ID, Action and Reason filter audit entries.
	Entity string  `yaml:"entity,omitempty"`
	ID     string  `yaml:"id,omitempty"`
	Action string  `yaml:"action,omitempty"`
	Reason *string `yaml:"reason,omitempty"`

	// Count is the expected number of matches (audit_count).
	Count *int `yaml:"count,omitempty"`

	// Entries lists "<action> <entity>:<id>" in expected order (audit_order).
	Entries []string `yaml:"entries,omitempty"`

	// Table, Where and Expect describe a row check (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Nodes and Connections are the expected live counts (live_count).
	Nodes       *int `yaml:"nodes,omitempty"`
	Connections *int `yaml:"connections,omitempty"`
}

// Assertion type constants.
const (
	AssertAuditContains = "audit_contains"
	AssertAuditCount    = "audit_count"
	AssertAuditOrder    = "audit_order"
	AssertFinalState    = "final_state"
	AssertLiveCount     = "live_count"
	AssertIntegrityOK   = "integrity_ok"
)

var knownOps = map[string]bool{
	"node.create": true, "node.update": true, "node.delete": true,
	"conn.create": true, "conn.update": true, "conn.delete": true,
	"graph.import": true, "graph.clear": true, "graph.save": true,
	"graph.load": true, "graph.delete_saved": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Actor == "" {
		scenario.Actor = DefaultActor
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Expect != nil {
			switch step.Expect.Outcome {
			case OutcomeOK, OutcomeValidation, OutcomeNotFound:
			default:
				return fmt.Errorf("flow[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertAuditContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for audit_contains", index)
		}
	case AssertAuditCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for audit_count", index)
		}
	case AssertAuditOrder:
		if len(a.Entries) < 2 {
			return fmt.Errorf("assertions[%d]: at least two entries are required for audit_order", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertLiveCount:
		if a.Nodes == nil && a.Connections == nil {
			return fmt.Errorf("assertions[%d]: nodes or connections is required for live_count", index)
		}
	case AssertIntegrityOK:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
