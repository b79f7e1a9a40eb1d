// Package telemetry sequences, batches and finalizes attempt telemetry.
//
// ARCHITECTURE:
//
// Single-Writer Pipeline:
// Every operation (enqueue, flush, finalize) runs to completion under one
// mutex, inline with the caller. There are no background goroutines
// unless the host opts into Run. This keeps the check-then-act sequences
// on sequence counters and the finalized set safe under a multi-threaded
// host.
//
// Per-attempt lifecycle:
//
//	Uninitialized → Active (step events accumulate) → Finalized
//
// The first event for an attempt id initializes its counters and
// throttle state. EmitAttemptEnd flushes every pending step event, then
// emits exactly one summary and marks the attempt finalized. There is no
// way back out of Finalized.
//
// Ordering:
// Step events of one attempt reach the sink in sequence order and before
// that attempt's summary. Cross-attempt ordering is unspecified.
//
// Delivery:
// Events leave the pending queue before the sink sees them. A sink error
// loses that batch; the pipeline backs off size- and tick-triggered
// flushes, letting the bounded queue absorb the outage. Retrying a
// delivered batch is the sink's job.
package telemetry
