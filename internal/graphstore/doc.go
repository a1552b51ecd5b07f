// Package graphstore is the versioned entity store for nodes and
// connections.
//
// Every accepted mutation runs in one store.WithTx unit of work that writes
// the entity row and its audit entry together:
//
//	create: version 1, one create entry (after state only)
//	update: version+1, created_at preserved, one update entry
//	delete: is_deleted set, version+1, one delete entry
//
// Rows are never removed. Deleting a node also soft-deletes every live
// connection incident to it, in the same transaction, each with its own
// delete entry whose reason carries CascadeSuffix.
//
// Update and delete on a missing or already-deleted entity are not errors:
// update returns nil and delete returns false. Bad input is reported as a
// graph.ValidationError before anything is written.
//
// The tx-scoped helpers (InsertNode, SoftDeleteConnection, LoadNodes, ...)
// are exported so the snapshot engine can compose them inside its own
// transaction.
package graphstore
