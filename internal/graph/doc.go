// Package graph defines the thinking graph's domain model: nodes, typed
// directed connections, and the canonical State codec used by audit
// entries, exports, and saved snapshots.
//
// It also owns input policy shared by every write path:
//   - size is floored at MinSize, strength at MinStrength, confidence is
//     clamped to [0, 1]; out-of-range values are coerced, never rejected
//   - text fields are trimmed and NFC-normalized
//   - partial updates use Optional so an absent field is distinguishable
//     from an explicit null or empty value
package graph
