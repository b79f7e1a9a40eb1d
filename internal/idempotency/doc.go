// Package idempotency derives deterministic idempotency keys and content
// fingerprints.
//
// Everything here is a pure function. Identical inputs always yield an
// identical key, which is what lets a retried publish phase or a resent
// telemetry batch be recognized server-side as the same operation.
//
// Key formats:
//
//	publish:<tenant>:<lab>:<version>:<hash>   (BuildKey, lower-cased)
//	step:<attemptId>:<sequence>               (StepKey)
//
// Fingerprints are lowercase hex SHA-256. FingerprintValue hashes
// structured values through RFC 8785 canonical JSON so that map key
// order never changes the result.
package idempotency
