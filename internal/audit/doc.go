// Package audit owns the append-only mutation log of the thinking graph.
//
// Every successful node or connection mutation appends exactly one entry,
// written through Write inside the same store.Tx as the mutation itself, so
// an entry exists if and only if its mutation committed.
//
// Entries carry full before/after entity states rather than diffs:
//
//	create: before = nil,   after = state
//	update: before = state, after = state
//	delete: before = state, after = tombstone state
//
// Reading is done through a Trail: List for filtered newest-first queries,
// Export for a downloadable document with per-dimension counts, and Verify
// for the integrity check that every entity row has the audit entries its
// lifecycle requires.
package audit
