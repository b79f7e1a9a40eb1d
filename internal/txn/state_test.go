package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_HappyPath(t *testing.T) {
	path := []State{
		StateDraft, StateValidating, StateValidated,
		StateBuildRequested, StateBuilding, StateBuilt,
		StatePublishRequested, StatePublishing, StatePublished,
		StateIngestRequested, StateIngesting, StateIngested,
		StateActivateRequested, StateActivated,
	}
	for i := 0; i+1 < len(path); i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransition_RejectsPhaseSkipping(t *testing.T) {
	assert.False(t, CanTransition(StateDraft, StateBuilt))
	assert.False(t, CanTransition(StateDraft, StateValidated))
	assert.False(t, CanTransition(StateBuildRequested, StateBuilt))
	assert.False(t, CanTransition(StateBuilt, StatePublishing))
	assert.False(t, CanTransition(StateValidated, StateFailedRetryable))
}

func TestCanTransition_EmptyEndpoints(t *testing.T) {
	assert.False(t, CanTransition("", StateDraft))
	assert.False(t, CanTransition(StateDraft, ""))
	assert.False(t, CanTransition("", ""))
}

func TestCanTransition_UnknownStates(t *testing.T) {
	assert.False(t, CanTransition("Bogus", StateDraft))
	assert.False(t, CanTransition(StateDraft, "Bogus"))
}

func TestTerminalStates_HaveNoOutgoingEdges(t *testing.T) {
	terminal := []State{StateActivated, StateFailedTerminal, StateCancelled}
	for _, from := range terminal {
		assert.True(t, IsTerminal(from), "%s should be terminal", from)
		for _, to := range AllStates {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestNonTerminalStates(t *testing.T) {
	for _, s := range AllStates {
		switch s {
		case StateActivated, StateFailedTerminal, StateCancelled:
			continue
		}
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}

func TestRequestedStates_OnlyToInProgressOrCancelled(t *testing.T) {
	cases := map[State]State{
		StateBuildRequested:   StateBuilding,
		StatePublishRequested: StatePublishing,
		StateIngestRequested:  StateIngesting,
	}
	for requested, inProgress := range cases {
		for _, to := range AllStates {
			want := to == inProgress || to == StateCancelled
			assert.Equal(t, want, CanTransition(requested, to), "%s -> %s", requested, to)
		}
	}
}

func TestInProgressStates_SucceedOrFail(t *testing.T) {
	cases := map[State]State{
		StateValidating: StateValidated,
		StateBuilding:   StateBuilt,
		StatePublishing: StatePublished,
		StateIngesting:  StateIngested,
	}
	for inProgress, success := range cases {
		assert.True(t, CanTransition(inProgress, success))
		assert.True(t, CanTransition(inProgress, StateFailedRetryable))
		assert.True(t, CanTransition(inProgress, StateFailedTerminal))
		assert.False(t, CanTransition(inProgress, StateCancelled))
	}
}

func TestFailedRetryable_IsRetryHub(t *testing.T) {
	for _, to := range AllStates {
		want := false
		switch to {
		case StateBuildRequested, StatePublishRequested, StateIngestRequested, StateActivateRequested, StateCancelled:
			want = true
		}
		assert.Equal(t, want, CanTransition(StateFailedRetryable, to), "FailedRetryable -> %s", to)
	}
}

func TestTransitions_DeterministicAndComplete(t *testing.T) {
	edges := Transitions()
	again := Transitions()
	assert.Equal(t, edges, again)

	count := 0
	for _, next := range allowedTransitions {
		count += len(next)
	}
	assert.Len(t, edges, count)
	assert.Equal(t, Edge{From: StateDraft, To: StateValidating}, edges[0])
}

func TestPhaseOfAndRequestedState(t *testing.T) {
	assert.Equal(t, PhaseBuild, PhaseOf(StateBuilding))
	assert.Equal(t, PhasePublish, PhaseOf(StatePublishing))
	assert.Equal(t, PhaseIngest, PhaseOf(StateIngesting))
	assert.Equal(t, PhaseActivate, PhaseOf(StateActivateRequested))
	assert.Equal(t, PhaseValidate, PhaseOf(StateValidating))
	assert.Equal(t, Phase(""), PhaseOf(StateFailedRetryable))

	s, ok := RequestedState(PhasePublish)
	assert.True(t, ok)
	assert.Equal(t, StatePublishRequested, s)

	_, ok = RequestedState(PhaseValidate)
	assert.False(t, ok)
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown(StateIngested))
	assert.False(t, IsKnown("Ingestedd"))
	assert.Len(t, AllStates, 17)
}
