package txn

// State is a publish-transaction state.
type State string

const (
	StateDraft             State = "Draft"
	StateValidating        State = "Validating"
	StateValidated         State = "Validated"
	StateBuildRequested    State = "BuildRequested"
	StateBuilding          State = "Building"
	StateBuilt             State = "Built"
	StatePublishRequested  State = "PublishRequested"
	StatePublishing        State = "Publishing"
	StatePublished         State = "Published"
	StateIngestRequested   State = "IngestRequested"
	StateIngesting         State = "Ingesting"
	StateIngested          State = "Ingested"
	StateActivateRequested State = "ActivateRequested"
	StateActivated         State = "Activated"
	StateFailedRetryable   State = "FailedRetryable"
	StateFailedTerminal    State = "FailedTerminal"
	StateCancelled         State = "Cancelled"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{
	StateDraft,
	StateValidating,
	StateValidated,
	StateBuildRequested,
	StateBuilding,
	StateBuilt,
	StatePublishRequested,
	StatePublishing,
	StatePublished,
	StateIngestRequested,
	StateIngesting,
	StateIngested,
	StateActivateRequested,
	StateActivated,
	StateFailedRetryable,
	StateFailedTerminal,
	StateCancelled,
}

// allowedTransitions is the adjacency table. Terminal states have no entry.
//
// ActivateRequested has no separate in-progress state; the request itself
// is the in-flight activation and fails directly.
var allowedTransitions = map[State]map[State]struct{}{
	StateDraft: {
		StateValidating: {},
		StateCancelled:  {},
	},
	StateValidating: {
		StateValidated:       {},
		StateFailedRetryable: {},
		StateFailedTerminal:  {},
	},
	StateValidated: {
		StateBuildRequested: {},
		StateCancelled:      {},
	},
	StateBuildRequested: {
		StateBuilding:  {},
		StateCancelled: {},
	},
	StateBuilding: {
		StateBuilt:           {},
		StateFailedRetryable: {},
		StateFailedTerminal:  {},
	},
	StateBuilt: {
		StatePublishRequested: {},
		StateCancelled:        {},
	},
	StatePublishRequested: {
		StatePublishing: {},
		StateCancelled:  {},
	},
	StatePublishing: {
		StatePublished:       {},
		StateFailedRetryable: {},
		StateFailedTerminal:  {},
	},
	StatePublished: {
		StateIngestRequested: {},
		StateCancelled:       {},
	},
	StateIngestRequested: {
		StateIngesting: {},
		StateCancelled: {},
	},
	StateIngesting: {
		StateIngested:        {},
		StateFailedRetryable: {},
		StateFailedTerminal:  {},
	},
	StateIngested: {
		StateActivateRequested: {},
		StateCancelled:         {},
	},
	StateActivateRequested: {
		StateActivated:       {},
		StateFailedRetryable: {},
		StateFailedTerminal:  {},
		StateCancelled:       {},
	},
	StateFailedRetryable: {
		StateBuildRequested:    {},
		StatePublishRequested:  {},
		StateIngestRequested:   {},
		StateActivateRequested: {},
		StateCancelled:         {},
	},
}

// CanTransition reports whether from → to is an edge of the table.
// Empty states never transition.
func CanTransition(from, to State) bool {
	if from == "" || to == "" {
		return false
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s State) bool {
	_, ok := allowedTransitions[s]
	return !ok
}

// IsKnown reports whether s is one of AllStates.
func IsKnown(s State) bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// Edge is one allowed transition.
type Edge struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// Transitions returns every allowed edge, ordered by AllStates on both
// endpoints.
func Transitions() []Edge {
	var edges []Edge
	for _, from := range AllStates {
		for _, to := range AllStates {
			if CanTransition(from, to) {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges
}

// Phase names a unit of publish work.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseBuild    Phase = "build"
	PhasePublish  Phase = "publish"
	PhaseIngest   Phase = "ingest"
	PhaseActivate Phase = "activate"
)

// PhaseOf returns the phase a state belongs to, or "" for Draft, the
// failure hub and terminal outcomes other than Activated.
func PhaseOf(s State) Phase {
	switch s {
	case StateValidating, StateValidated:
		return PhaseValidate
	case StateBuildRequested, StateBuilding, StateBuilt:
		return PhaseBuild
	case StatePublishRequested, StatePublishing, StatePublished:
		return PhasePublish
	case StateIngestRequested, StateIngesting, StateIngested:
		return PhaseIngest
	case StateActivateRequested, StateActivated:
		return PhaseActivate
	default:
		return ""
	}
}

// RequestedState returns the entry state of a phase that can be resumed
// from FailedRetryable. Validation is not resumable.
func RequestedState(p Phase) (State, bool) {
	switch p {
	case PhaseBuild:
		return StateBuildRequested, true
	case PhasePublish:
		return StatePublishRequested, true
	case PhaseIngest:
		return StateIngestRequested, true
	case PhaseActivate:
		return StateActivateRequested, true
	default:
		return "", false
	}
}
