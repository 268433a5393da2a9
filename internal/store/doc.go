// Package store is the embedded persistence layer for the nutrition log.
//
// # Architecture
//
// A single Store struct owns one in-memory SQLite database on a single
// connection, with per-entity repository files:
//
//   - users.go: profiles, credentials, goals, account-deletion cascade
//   - foods.go: the read-only system catalog and user custom foods
//   - logs.go: food logs with the daily cap, soft delete, and retention
//   - favorites.go / scoring.go: favorites and frequency ranking
//   - searches.go: the capped recent-search FIFO
//   - summary.go / streak.go: the daily_summary cache and its aggregations
//   - templates.go: reusable meal templates
//   - migrate.go: the one-time legacy flat-store import
//
// # Durability
//
// The live database is in memory. Persist serializes it to a snapshot file
// (VACUUM INTO plus atomic rename); Open restores the snapshot, falling back
// to a fresh empty store when it is corrupt or unreadable. Durability is
// eventual and explicit: callers persist after logical mutations, not per
// statement.
//
// # Consistency
//
// daily_summary is a derived cache, never a source of truth. Every log
// mutation recomputes the affected (user, date) bucket inside the same
// transaction, so reads never observe drift between the cache and the alive
// log rows. Capacity caps are enforced inside single conditional INSERT
// statements rather than check-then-act sequences.
//
// # Error Handling
//
// Sentinel errors checked with errors.Is:
//
//   - ErrNotFound: entity absent or soft-deleted
//   - ErrLimitReached: a capacity cap would be exceeded
//   - ErrDuplicateEmail: email already registered
//   - ErrInvalidCredentials: email/password mismatch
//
// Storage-engine failures are wrapped and propagated unchanged. All methods
// accept context.Context.
package store
