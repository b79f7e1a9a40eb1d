package attempt

// Identity is the identity record of one launch attempt.
type Identity struct {
	// LaunchRequestID is the stable local key. It never changes.
	LaunchRequestID string `json:"launchRequestId"`

	// AttemptID is the working id used by telemetry.
	AttemptID string `json:"attemptId"`

	IdempotencyKey string `json:"idempotencyKey"`

	// CanonicalAttemptID is empty until the backend reconciles.
	CanonicalAttemptID string `json:"canonicalAttemptId"`

	IsLocalOnly  bool   `json:"isLocalOnly"`
	IsReconciled bool   `json:"isReconciled"`
	LabID        string `json:"labId"`

	// RequestedAt is an ISO-8601 UTC timestamp.
	RequestedAt string `json:"requestedAt"`
}

// EffectiveAttemptID returns the canonical id when known, otherwise the
// local attempt id.
func (i Identity) EffectiveAttemptID() string {
	if i.IsReconciled && i.CanonicalAttemptID != "" {
		return i.CanonicalAttemptID
	}
	return i.AttemptID
}
