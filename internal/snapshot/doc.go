// Package snapshot implements whole-graph operations: reading the live
// graph, exporting it, saving it under a name, and replacing it.
//
// Load, Import and Clear are destructive replaces. In a single transaction
// the engine:
//
//  1. soft-deletes every live connection, then every live node, each with
//     its own delete entry tagged ClearSuffix
//  2. inserts each source node under a fresh id, remembering old -> new
//  3. inserts each source connection whose endpoints both resolve through
//     that map to distinct nodes; others are skipped without error
//
// Connections are cleared before nodes and nodes restored before
// connections because connection rows reference node rows. Restored
// entities never reuse a persisted id, and the id map is discarded when the
// transaction ends.
package snapshot
