// Package store provides SQLite-backed history of query model snapshots.
//
// Every parse that is recorded becomes one row holding the query text, the
// canonical snapshot JSON produced by package canon, and two fingerprints:
//   - query_hash identifies the query text (NFC normalized)
//   - model_hash identifies the snapshot
//
// A (query_hash, model_hash) pair is stored once. Recording the same query
// with the same model again is a no-op that returns the existing entry, so
// the history of a query only grows when its model changes.
//
// # Ordering
//
// Entries carry a logical seq assigned at insert. Reads order by
// seq ASC, id ASC COLLATE BINARY and never by created_at, so listings are
// stable even when the wall clock is not.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
