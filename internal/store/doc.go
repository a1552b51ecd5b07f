// Package store provides the SQLite-backed transactional store for the
// thinking graph.
//
// The store owns the single database connection and exposes two ways in:
//   - WithTx: one atomic unit of work. Commits when the callback returns nil,
//     rolls back when it returns an error or panics.
//   - QueryContext / QueryRowContext: plain reads outside any transaction.
//
// # Schema
//
//   - nodes, connections: entity rows. Never physically removed; is_deleted
//     marks tombstones and version counts accepted mutations.
//   - audits: append-only lifecycle log with full before/after states.
//   - graph_snapshots: named, overwrite-by-name copies of the live graph.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: connection endpoints must reference an existing node row
//
// The pool is pinned to one connection. Callers must not issue reads through
// the Store while holding a Tx on the same goroutine; use the Tx instead.
package store
