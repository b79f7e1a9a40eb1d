package txn

import (
	"fmt"
	"log/slog"

	"github.com/roach88/lifecycle/internal/clock"
)

// Machine applies transitions to transactions.
//
// Machine holds no transaction state. Callers own their *Transaction
// values and must not mutate one from two goroutines at once.
type Machine struct {
	clock  clock.Clock
	logger *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock sets the clock used to stamp transitions.
func WithClock(c clock.Clock) MachineOption {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithLogger sets the logger used to report rejected transitions.
func WithLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

// NewMachine creates a Machine using the real clock and slog.Default.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Draft creates a new draft stamped with the machine's clock.
func (m *Machine) Draft(id, idempotencyKey string) *Transaction {
	return NewDraft(id, idempotencyKey, m.clock.Now())
}

// Transition moves t to the given state and appends a history entry.
// Returns a *TransitionError, leaving t untouched, if either endpoint is
// empty or the edge is not allowed.
func (m *Machine) Transition(t *Transaction, to State, reason, actor string) error {
	from := t.State
	if !CanTransition(from, to) {
		return &TransitionError{
			Code:          ErrCodeRejectedTransition,
			TransactionID: t.ID,
			From:          from,
			To:            to,
			Message:       "transition not allowed",
		}
	}

	at := clock.Format(m.clock.Now())
	t.State = to
	t.UpdatedAt = at
	t.History = append(t.History, HistoryEntry{
		From:   from,
		To:     to,
		At:     at,
		Reason: reason,
		Actor:  actor,
	})

	m.logger.Debug("transaction transitioned",
		"transaction_id", t.ID,
		"from", from,
		"to", to,
		"actor", actor,
	)
	return nil
}

// TryTransition is Transition reporting success as a bool. Rejections
// are logged at warn level.
func (m *Machine) TryTransition(t *Transaction, to State, reason, actor string) bool {
	if err := m.Transition(t, to, reason, actor); err != nil {
		m.logger.Warn("transition rejected",
			"transaction_id", t.ID,
			"from", t.State,
			"to", to,
			"reason", reason,
			"actor", actor,
			"error", err,
		)
		return false
	}
	return true
}

// Fail records perr and moves t into FailedRetryable or FailedTerminal.
// An empty perr.Phase is filled from the current state. Returns false,
// recording nothing, when the current state cannot fail.
func (m *Machine) Fail(t *Transaction, perr PhaseError, actor string) bool {
	to := StateFailedTerminal
	if perr.Retryable {
		to = StateFailedRetryable
	}
	if perr.Phase == "" {
		perr.Phase = PhaseOf(t.State)
	}
	perr.Terminal = !perr.Retryable

	if !m.TryTransition(t, to, fmt.Sprintf("%s: %s", perr.Code, perr.Message), actor) {
		return false
	}
	t.Errors = append(t.Errors, perr)
	return true
}

// ResumeTarget returns the Requested state a FailedRetryable transaction
// would resume into: the entry state of the phase that failed.
func ResumeTarget(t *Transaction) (State, error) {
	last, ok := t.LastEntry()
	if !ok || t.State != StateFailedRetryable || last.To != StateFailedRetryable {
		return "", &TransitionError{
			Code:          ErrCodeNotResumable,
			TransactionID: t.ID,
			From:          t.State,
			Message:       "transaction is not in the retry hub",
		}
	}

	target, ok := RequestedState(PhaseOf(last.From))
	if !ok {
		return "", &TransitionError{
			Code:          ErrCodeNotResumable,
			TransactionID: t.ID,
			From:          t.State,
			Message:       fmt.Sprintf("phase of %q cannot be resumed", last.From),
		}
	}
	return target, nil
}

// Resume moves a FailedRetryable transaction back into the Requested
// state of the phase that failed.
func (m *Machine) Resume(t *Transaction, reason, actor string) bool {
	target, err := ResumeTarget(t)
	if err != nil {
		m.logger.Warn("resume rejected",
			"transaction_id", t.ID,
			"state", t.State,
			"error", err,
		)
		return false
	}
	return m.TryTransition(t, target, reason, actor)
}
