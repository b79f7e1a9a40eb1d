package attempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryValidator_ValidContext(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	v := NewRegistryValidator(r)

	lc := ContextFor(id)
	assert.NoError(t, v.ValidateLineage(lc, false))

	lc.ResolvedVersionID = "ver-1"
	assert.NoError(t, v.ValidateLineage(lc, true))
}

func TestRegistryValidator_RequiresResolvedVersion(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	v := NewRegistryValidator(r)

	err := v.ValidateLineage(ContextFor(id), true)
	assert.ErrorIs(t, err, ErrUnresolvedVersion)
}

func TestRegistryValidator_Incomplete(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	v := NewRegistryValidator(r)

	cases := map[string]func(*LaunchContext){
		"attemptId":       func(lc *LaunchContext) { lc.AttemptID = "" },
		"labId":           func(lc *LaunchContext) { lc.LabID = "" },
		"idempotencyKey":  func(lc *LaunchContext) { lc.IdempotencyKey = "" },
		"launchRequestId": func(lc *LaunchContext) { lc.LaunchRequestID = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			lc := ContextFor(id)
			mutate(&lc)
			err := v.ValidateLineage(lc, false)
			require.ErrorIs(t, err, ErrIncompleteLineage)
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestRegistryValidator_UnknownLaunch(t *testing.T) {
	r := newTestRegistry()
	v := NewRegistryValidator(r)

	lc := LaunchContext{AttemptID: "a", LabID: "l", IdempotencyKey: "k", LaunchRequestID: "missing"}
	assert.ErrorIs(t, v.ValidateLineage(lc, false), ErrUnknownLaunch)
}

func TestRegistryValidator_Mismatch(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	v := NewRegistryValidator(r)

	lc := ContextFor(id)
	lc.LabID = "other-lab"
	assert.ErrorIs(t, v.ValidateLineage(lc, false), ErrLineageMismatch)

	lc = ContextFor(id)
	lc.IdempotencyKey = "other-key"
	assert.ErrorIs(t, v.ValidateLineage(lc, false), ErrLineageMismatch)

	lc = ContextFor(id)
	lc.AttemptID = "someone-else"
	assert.ErrorIs(t, v.ValidateLineage(lc, false), ErrLineageMismatch)
}

func TestRegistryValidator_AcceptsCanonicalAttemptID(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	require.True(t, r.TryReconcile(id.LaunchRequestID, "backend-7"))
	v := NewRegistryValidator(r)

	lc := ContextFor(id)
	lc.AttemptID = "backend-7"
	assert.NoError(t, v.ValidateLineage(lc, false))

	lc.AttemptID = ""
	assert.ErrorIs(t, v.ValidateLineage(lc, false), ErrIncompleteLineage)
}

func TestSession_Lifecycle(t *testing.T) {
	r := newTestRegistry()
	id := r.CreateLocalFirst("lab-abc")
	s := NewSession()

	_, ok := s.CurrentLaunchContext()
	assert.False(t, ok)
	assert.False(t, s.ResolveVersion("ver-1", false), "no active launch")

	s.Begin(id)
	lc, ok := s.CurrentLaunchContext()
	require.True(t, ok)
	assert.Equal(t, id.AttemptID, lc.AttemptID)
	assert.Empty(t, lc.ResolvedVersionID)

	require.True(t, s.ResolveVersion("ver-1", true))
	lc, _ = s.CurrentLaunchContext()
	assert.Equal(t, "ver-1", lc.ResolvedVersionID)
	assert.True(t, lc.LaunchedFromCache)

	s.Clear()
	_, ok = s.CurrentLaunchContext()
	assert.False(t, ok)
}
