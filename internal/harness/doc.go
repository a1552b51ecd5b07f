// Package harness runs YAML scenarios against a real graph store and
// checks the resulting audit trail and entity tables.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential ids, so the audit trace is byte-identical across
// runs and can be compared against golden files.
//
// # Scenario Format
//
//	name: cascade_delete
//	description: "Deleting a node deletes its connections"
//	actor: tester
//	flow:
//	  - op: node.create
//	    as: a
//	    args: { content: "A" }
//	  - op: conn.create
//	    as: ab
//	    args: { source_id: $a, target_id: $b }
//	  - op: node.delete
//	    id: $a
//	    reason: prune
//	  - op: conn.create
//	    args: { source_id: $a, target_id: $b }
//	    expect: { outcome: validation }
//	assertions:
//	  - type: audit_contains
//	    entity: connection
//	    id: $ab
//	    action: delete
//	    reason: "prune [cascade by node deletion]"
//	  - type: final_state
//	    table: nodes
//	    where: { id: $a }
//	    expect: { is_deleted: 1, version: 2 }
//	  - type: integrity_ok
//
// Strings of the form $name refer to the id bound by an earlier step's "as".
// Step args are decoded exactly like a JSON request body, so a YAML null is
// an explicit null.
//
// # Operations
//
//   - node.create, node.update, node.delete
//   - conn.create, conn.update, conn.delete
//   - graph.import, graph.clear, graph.save, graph.load, graph.delete_saved
//
// # Assertion Types
//
//   - audit_contains: an audit entry matches entity, id, action and reason
//   - audit_count: exactly N entries match the given filters
//   - audit_order: entries appear in the given relative order
//   - final_state: one row of a table matches expected column values
//   - live_count: the live graph has the given node and connection counts
//   - integrity_ok: the audit verifier reports no issues
package harness
