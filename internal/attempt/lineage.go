package attempt

import (
	"errors"
	"fmt"
)

// Lineage rejection causes. Validators wrap these with the detail.
var (
	ErrIncompleteLineage = errors.New("incomplete lineage")
	ErrUnresolvedVersion = errors.New("content version not resolved")
	ErrUnknownLaunch     = errors.New("unknown launch request")
	ErrLineageMismatch   = errors.New("lineage mismatch")
)

// LineageValidator checks that a launch context's identifiers are
// mutually consistent. A nil error means the context is usable; otherwise
// the error message is the human-readable rejection reason.
type LineageValidator interface {
	ValidateLineage(lc LaunchContext, requireResolvedVersion bool) error
}

// RegistryValidator validates launch contexts against a Registry.
type RegistryValidator struct {
	registry *Registry
}

// NewRegistryValidator creates a validator backed by r.
func NewRegistryValidator(r *Registry) *RegistryValidator {
	return &RegistryValidator{registry: r}
}

// ValidateLineage implements LineageValidator.
//
// The attempt id may be either the local id or, once reconciled, the
// canonical id.
func (v *RegistryValidator) ValidateLineage(lc LaunchContext, requireResolvedVersion bool) error {
	if err := checkComplete(lc); err != nil {
		return err
	}
	if requireResolvedVersion && lc.ResolvedVersionID == "" {
		return fmt.Errorf("%w: attempt %s", ErrUnresolvedVersion, lc.AttemptID)
	}

	id, ok := v.registry.TryGet(lc.LaunchRequestID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLaunch, lc.LaunchRequestID)
	}
	if id.LabID != lc.LabID {
		return fmt.Errorf("%w: lab %q does not match %q", ErrLineageMismatch, lc.LabID, id.LabID)
	}
	if id.IdempotencyKey != lc.IdempotencyKey {
		return fmt.Errorf("%w: idempotency key differs for launch %s", ErrLineageMismatch, lc.LaunchRequestID)
	}
	if lc.AttemptID != id.AttemptID && (id.CanonicalAttemptID == "" || lc.AttemptID != id.CanonicalAttemptID) {
		return fmt.Errorf("%w: attempt %q does not belong to launch %s", ErrLineageMismatch, lc.AttemptID, lc.LaunchRequestID)
	}
	return nil
}

func checkComplete(lc LaunchContext) error {
	missing := ""
	switch {
	case lc.AttemptID == "":
		missing = "attemptId"
	case lc.LabID == "":
		missing = "labId"
	case lc.IdempotencyKey == "":
		missing = "idempotencyKey"
	case lc.LaunchRequestID == "":
		missing = "launchRequestId"
	}
	if missing != "" {
		return fmt.Errorf("%w: missing %s", ErrIncompleteLineage, missing)
	}
	return nil
}

var _ LineageValidator = (*RegistryValidator)(nil)
