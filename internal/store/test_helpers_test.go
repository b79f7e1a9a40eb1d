package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/lifecycle/internal/clock"
	"github.com/roach88/lifecycle/internal/testutil"
	"github.com/roach88/lifecycle/internal/txn"
)

// createTestStore creates a new store in a temp dir with a pinned clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(testutil.NewClock()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestMachine returns a state machine on a fake clock and the clock.
func newTestMachine() (*txn.Machine, *clock.FakeClock) {
	fc := testutil.NewClock()
	m := txn.NewMachine(txn.WithClock(fc), txn.WithLogger(testutil.DiscardLogger()))
	return m, fc
}

// advance moves t through the given states, one second apart.
func advance(t *testing.T, m *txn.Machine, fc *clock.FakeClock, tx *txn.Transaction, states ...txn.State) {
	t.Helper()
	for _, st := range states {
		fc.Advance(time.Second)
		if err := m.Transition(tx, st, "test", "tester"); err != nil {
			t.Fatalf("Transition(%s) failed: %v", st, err)
		}
	}
}
