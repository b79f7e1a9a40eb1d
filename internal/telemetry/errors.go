package telemetry

import (
	"errors"
	"fmt"
)

// DropReason categorizes why an event or summary was not queued.
type DropReason string

const (
	// DropMissingContext: no launch context was available.
	DropMissingContext DropReason = "missing_context"

	// DropInvalidLineage: the lineage validator rejected the context.
	DropInvalidLineage DropReason = "invalid_lineage"

	// DropFinalized: the attempt already emitted its summary.
	DropFinalized DropReason = "attempt_finalized"

	// DropThrottled: a download progress event inside the throttle window.
	DropThrottled DropReason = "throttled"

	// DropOverflow: the pending queue was at capacity.
	DropOverflow DropReason = "queue_overflow"
)

// Context rejection causes wrapped by DropError.
var (
	ErrMissingContext = errors.New("no current launch context")
	ErrInvalidLineage = errors.New("invalid lineage")
)

// DropError describes a non-fatal telemetry loss. It is logged and
// counted; it never reaches the caller as a failure.
type DropError struct {
	Reason    DropReason
	AttemptID string
	Err       error
}

func (e *DropError) Error() string {
	if e.AttemptID != "" {
		return fmt.Sprintf("telemetry dropped (%s, attempt=%s): %v", e.Reason, e.AttemptID, e.Err)
	}
	return fmt.Sprintf("telemetry dropped (%s): %v", e.Reason, e.Err)
}

func (e *DropError) Unwrap() error {
	return e.Err
}

// IsDrop reports whether err is a DropError with the given reason.
func IsDrop(err error, reason DropReason) bool {
	var de *DropError
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}
