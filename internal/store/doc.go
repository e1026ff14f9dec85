// Package store provides the SQLite-backed run journal.
//
// The journal is an append-only audit log:
//   - Runs: one row per invocation of an operation (update, build, ...)
//   - Operations: one row per remote mutation attempted by a run
//
// Operations are ordered by seq, stamped by the engine's logical clock, never
// by wall time.
// Nothing in the journal is read back to decide what a later run does.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
