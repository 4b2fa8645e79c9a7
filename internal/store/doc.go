// Package store provides SQLite-backed durable storage for machine
// diagnostics.
//
// The store is an append-only log with:
//   - Runs: one record per machine instance, keyed by run id
//   - Diagnostics: guest-visible errors surfaced at the shim boundary
//
// # Ordering
//
// Diagnostics are ordered by their logical sequence number within a run,
// never by timestamps, so replays of the same guest produce identical
// listings. Queries always include ORDER BY seq ASC.
//
// # Idempotency
//
// (run_id, seq) is the primary key of a diagnostic. Writing the same
// diagnostic twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Migrations
//
// schema.sql creates the base tables. Later changes are appended to the
// migrations list in store.go; each runs once, in its own transaction,
// and bumps PRAGMA user_version.
//
// Details are stored as canonical JSON via ir.MarshalCanonical.
package store
