package telemetry

import "time"

// attemptState is the per-attempt bookkeeping of an Active attempt.
// It is created on the first event and deleted on finalization.
type attemptState struct {
	// seq is the last sequence number handed out. The next event gets
	// seq+1, so the first event of an attempt is numbered 1.
	seq int64

	hints          int
	resets         int
	criticalErrors int

	progressSeen   bool
	lastProgress   float64
	lastProgressAt time.Time
}

// next advances and returns the attempt's sequence number.
func (s *attemptState) next() int64 {
	s.seq++
	return s.seq
}

// admitProgress reports whether a download progress event at value p and
// time now passes the throttle, and records it if so.
func (s *attemptState) admitProgress(p float64, now time.Time, interval time.Duration, delta float64) bool {
	pass := !s.progressSeen ||
		now.Sub(s.lastProgressAt) >= interval ||
		abs(p-s.lastProgress) >= delta ||
		p >= 100
	if !pass {
		return false
	}
	s.progressSeen = true
	s.lastProgress = p
	s.lastProgressAt = now
	return true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
