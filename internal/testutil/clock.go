// Package testutil holds deterministic collaborators shared by package
// tests: a pinned fake clock, a discarding logger and a capturing sink.
package testutil

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/lifecycle/internal/clock"
)

// Epoch is the instant every test clock starts at unless told otherwise.
var Epoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// NewClock returns a fake clock pinned at Epoch.
func NewClock() *clock.FakeClock {
	return clock.Fake(Epoch)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
