package attempt

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/lifecycle/internal/clock"
)

// Registry owns attempt identities for the life of the process, keyed by
// launch request id. Records are never deleted.
//
// Thread-safety: all methods are safe for concurrent use. Each method is
// one critical section, so reconcile's check-then-set cannot interleave.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Identity
	ids     IDGenerator
	clock   clock.Clock
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator sets the generator used for all three fresh ids.
func WithIDGenerator(g IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.ids = g
	}
}

// WithClock sets the clock used to stamp RequestedAt.
func WithClock(c clock.Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry. Defaults: UUIDv7 ids, real
// clock, slog.Default.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		records: make(map[string]Identity),
		ids:     UUIDv7Generator{},
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateLocalFirst allocates a local-only identity for labID and stores
// it. No network call is made.
func (r *Registry) CreateLocalFirst(labID string) Identity {
	id := Identity{
		LaunchRequestID: r.ids.Generate(),
		AttemptID:       r.ids.Generate(),
		IdempotencyKey:  r.ids.Generate(),
		IsLocalOnly:     true,
		IsReconciled:    false,
		LabID:           labID,
		RequestedAt:     clock.Format(r.clock.Now()),
	}

	r.mu.Lock()
	r.records[id.LaunchRequestID] = id
	r.mu.Unlock()

	r.logger.Debug("attempt identity created",
		"launch_request_id", id.LaunchRequestID,
		"attempt_id", id.AttemptID,
		"lab_id", labID,
	)
	return id
}

// TryReconcile attaches the backend's canonical attempt id.
//
// Returns false for an unknown launch request id or an empty canonical
// id. Reconciling again with the same canonical id returns true and
// changes nothing; a different canonical id for an already reconciled
// record returns false and keeps the first one.
func (r *Registry) TryReconcile(launchRequestID, canonicalAttemptID string) bool {
	if canonicalAttemptID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.records[launchRequestID]
	if !ok {
		r.logger.Debug("reconcile target unknown",
			"launch_request_id", launchRequestID,
			"canonical_attempt_id", canonicalAttemptID,
		)
		return false
	}

	if id.IsReconciled {
		if id.CanonicalAttemptID == canonicalAttemptID {
			return true
		}
		r.logger.Warn("conflicting reconciliation ignored",
			"launch_request_id", launchRequestID,
			"canonical_attempt_id", id.CanonicalAttemptID,
			"rejected_canonical_attempt_id", canonicalAttemptID,
		)
		return false
	}

	id.CanonicalAttemptID = canonicalAttemptID
	id.IsReconciled = true
	id.IsLocalOnly = false
	r.records[launchRequestID] = id

	r.logger.Info("attempt identity reconciled",
		"launch_request_id", launchRequestID,
		"attempt_id", id.AttemptID,
		"canonical_attempt_id", canonicalAttemptID,
	)
	return true
}

// TryGet returns a copy of the identity stored under launchRequestID.
func (r *Registry) TryGet(launchRequestID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.records[launchRequestID]
	return id, ok
}

// Restore inserts a previously persisted identity, replacing any record
// with the same launch request id.
func (r *Registry) Restore(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id.LaunchRequestID] = id
}

// Snapshot returns all identities ordered by RequestedAt, then launch
// request id.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	out := make([]Identity, 0, len(r.records))
	for _, id := range r.records {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt != out[j].RequestedAt {
			return out[i].RequestedAt < out[j].RequestedAt
		}
		return out[i].LaunchRequestID < out[j].LaunchRequestID
	})
	return out
}

// Len returns the number of identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
