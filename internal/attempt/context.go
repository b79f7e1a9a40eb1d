package attempt

import "sync"

// LaunchContext is the lineage of the attempt currently running.
type LaunchContext struct {
	AttemptID         string
	LabID             string
	IdempotencyKey    string
	LaunchRequestID   string
	ResolvedVersionID string
	RequestedAt       string
	LaunchedFromCache bool
}

// ContextFor builds the launch context of a freshly created identity.
// The content version is not resolved yet.
func ContextFor(id Identity) LaunchContext {
	return LaunchContext{
		AttemptID:       id.AttemptID,
		LabID:           id.LabID,
		IdempotencyKey:  id.IdempotencyKey,
		LaunchRequestID: id.LaunchRequestID,
		RequestedAt:     id.RequestedAt,
	}
}

// ContextProvider exposes the current launch context, if any.
type ContextProvider interface {
	CurrentLaunchContext() (LaunchContext, bool)
}

// Session holds the launch context of the attempt in progress.
//
// Thread-safety: all methods are safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	current LaunchContext
	active  bool
}

// NewSession creates a session with no active launch.
func NewSession() *Session {
	return &Session{}
}

// Begin makes id the current launch.
func (s *Session) Begin(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ContextFor(id)
	s.active = true
}

// ResolveVersion records the content version the launch resolved to.
// Returns false if no launch is active.
func (s *Session) ResolveVersion(versionID string, fromCache bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.current.ResolvedVersionID = versionID
	s.current.LaunchedFromCache = fromCache
	return true
}

// Clear ends the current launch.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = LaunchContext{}
	s.active = false
}

// CurrentLaunchContext implements ContextProvider.
func (s *Session) CurrentLaunchContext() (LaunchContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.active
}

var _ ContextProvider = (*Session)(nil)
