// Package txn implements the publish-transaction state machine.
//
// A Transaction moves through validate, build, publish, ingest and
// activate phases. Every move is checked against a fixed adjacency
// table and recorded in an append-only history:
//
//	Draft → Validating → Validated → BuildRequested → Building → Built
//	      → PublishRequested → Publishing → Published
//	      → IngestRequested → Ingesting → Ingested
//	      → ActivateRequested → Activated
//
// Any in-flight phase may fail into FailedRetryable or FailedTerminal.
// FailedRetryable is the single retry hub: it can re-enter any of the
// four "Requested" states, so a retry resumes at the phase that failed.
// Activated, FailedTerminal and Cancelled are terminal.
//
// INVARIANTS:
//   - State always equals the To of the last history entry
//   - History is never truncated or reordered
//   - A rejected transition leaves the transaction untouched
package txn
