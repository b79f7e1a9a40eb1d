// Package store provides SQLite-backed persistence for publish
// transactions, attempt identities and the telemetry outbox.
//
// # Tables
//
//   - transactions: one row per transaction, holding its latest report
//   - transaction_history: append-only audit rows, keyed by position
//   - attempt_identities: registry records keyed by launch request id
//   - telemetry_outbox: zstd-compressed batches awaiting delivery
//
// # Invariants
//
// History rows are written with ON CONFLICT DO NOTHING and never updated,
// so a save can extend a transaction's history but never rewrite it. A
// save whose history is shorter than what is stored is rejected.
//
// Outbox reads are ordered by seq, the insertion order, so delivery
// preserves the order in which the pipeline produced batches.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
