// Package attempt allocates and reconciles attempt identities.
//
// Identities are created local-first: CreateLocalFirst returns a
// complete identity immediately, with no network round trip, so a launch
// can start offline or while the backend is slow. When the backend later
// accepts the attempt, TryReconcile attaches its canonical id.
//
// Telemetry already emitted under the local attempt id is never
// rewritten. Backends merge an attempt's events by launchRequestId,
// which is stable from the first event onward.
//
// The Registry is an explicitly owned value. There is no package-level
// registry; hosts construct one and pass it to collaborators.
package attempt
