// Package clock provides the wall clock used to stamp transactions,
// identities and telemetry.
//
// Wall time is used for timestamps and flush/throttle intervals only.
// Ordering of telemetry within an attempt comes from per-attempt
// sequence numbers, never from these timestamps.
package clock

import (
	"sync"
	"time"
)

// ISO8601 is the layout used for every timestamp the engine emits.
const ISO8601 = "2006-01-02T15:04:05.000Z07:00"

// Clock abstracts wall time so tests can control it.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Format renders t in UTC using ISO8601.
func Format(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// Parse parses an ISO-8601 timestamp. RFC 3339 with or without
// fractional seconds is accepted.
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FakeClock is a deterministic Clock. Time stands still until Advance
// or Set is called.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock starting at the given time.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t. Going backwards is allowed; tests use it to
// exercise clamping of negative durations.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
