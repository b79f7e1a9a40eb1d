package txn

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes state machine errors.
type ErrorCode string

const (
	// ErrCodeRejectedTransition indicates an edge missing from the table.
	ErrCodeRejectedTransition ErrorCode = "REJECTED_TRANSITION"

	// ErrCodeNotResumable indicates Resume found no phase to resume.
	ErrCodeNotResumable ErrorCode = "NOT_RESUMABLE"
)

// TransitionError describes a refused state change. The transaction is
// unchanged whenever one is returned.
type TransitionError struct {
	Code          ErrorCode
	TransactionID string
	From          State
	To            State
	Message       string
}

func (e *TransitionError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("%s: %s (transaction=%s, %q -> %q)", e.Code, e.Message, e.TransactionID, e.From, e.To)
	}
	return fmt.Sprintf("%s: %s (%q -> %q)", e.Code, e.Message, e.From, e.To)
}

// IsRejectedTransition reports whether err is a rejected transition.
// Uses errors.As to handle wrapped errors.
func IsRejectedTransition(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeRejectedTransition
	}
	return false
}
