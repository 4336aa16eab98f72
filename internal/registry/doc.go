// Package registry keeps the durable, append-only sequence of experiment
// identifiers. An experiment's index is its 0-based position in that
// sequence and never changes once assigned.
//
// Three backends implement [Registry]:
//
//   - [FileRegistry] stores {"current": [...]} in one JSON file and
//     serializes appends with an exclusive flock on a sibling lock file.
//   - [SQLiteRegistry] stores one row per experiment and serializes appends
//     with an immediate transaction.
//   - [MemoryRegistry] is process-local and used in tests.
//
// An absent record is an empty registry. A record that exists but cannot be
// parsed is reported as corrupt and is never truncated or rewritten.
package registry
