package testutil

import (
	"context"
	"sync"
)

// CapturingSink records every batch it is sent, in order.
//
// It can be told to fail the next N sends, which lets tests exercise
// transport failures without a real backend.
//
// Thread-safety: all methods are safe for concurrent use.
type CapturingSink struct {
	mu        sync.Mutex
	batches   [][]byte
	failNext  int
	failErr   error
	attempted int
}

// NewCapturingSink creates an empty sink.
func NewCapturingSink() *CapturingSink {
	return &CapturingSink{}
}

// Send records batch, or fails if a failure is armed. Failed batches are
// not recorded.
func (s *CapturingSink) Send(_ context.Context, batch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempted++
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	s.batches = append(s.batches, append([]byte(nil), batch...))
	return nil
}

// FailNext makes the next n sends return err.
func (s *CapturingSink) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

// Batches returns copies of the recorded batches.
func (s *CapturingSink) Batches() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.batches))
	copy(out, s.batches)
	return out
}

// Attempts returns how many times Send was called, failures included.
func (s *CapturingSink) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempted
}
