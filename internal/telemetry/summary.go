package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/clock"
)

// EmitAttemptEnd finalizes the current attempt: every pending step event
// is flushed, then exactly one summary is sent. The context must carry a
// resolved content version.
//
// Returns true when this call finalized the attempt. A second call for
// the same attempt is a no-op returning false. A sink failure on the
// summary still finalizes; the summary is not retried.
func (p *Pipeline) EmitAttemptEnd(ctx context.Context, end AttemptEnd) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lc, err := p.currentContext(true)
	if err != nil {
		p.drop(err)
		return false
	}
	if p.isFinalized(lc.AttemptID) {
		p.logger.Debug("attempt already finalized", "attempt_id", lc.AttemptID)
		return false
	}

	now := p.clock.Now()
	p.drainLocked(ctx, now)

	st, ok := p.attempts[lc.AttemptID]
	if !ok {
		st = &attemptState{}
	}
	summary := p.buildSummary(lc, st, end, now)

	// Finalized before send so a failing sink cannot yield a second
	// summary.
	p.finalized[lc.AttemptID] = struct{}{}
	delete(p.attempts, lc.AttemptID)

	_ = p.send(ctx, now, summaryBatch(summary))

	p.logger.Info("attempt finalized",
		"attempt_id", lc.AttemptID,
		"status", string(summary.CompletionStatus),
		"duration_seconds", summary.DurationSeconds,
		"step_events", st.seq,
	)
	return true
}

func (p *Pipeline) buildSummary(lc attempt.LaunchContext, st *attemptState, end AttemptEnd, now time.Time) AttemptSummary {
	s := AttemptSummary{
		AttemptID:        lc.AttemptID,
		LaunchRequestID:  lc.LaunchRequestID,
		IdempotencyKey:   lc.IdempotencyKey,
		LabID:            lc.LabID,
		LabVersionID:     lc.ResolvedVersionID,
		StartedAt:        lc.RequestedAt,
		CompletedAt:      clock.Format(now),
		DurationSeconds:  p.durationSeconds(lc, end, now),
		CompletionStatus: NormalizeStatus(end.Status),
		HintsUsed:        st.hints,
		ResetsUsed:       st.resets,
		CriticalErrors:   st.criticalErrors,
		DeviceType:       p.cfg.DeviceType,
		SessionData: SessionData{
			CompletionReason:  end.Reason,
			LaunchedFromCache: lc.LaunchedFromCache,
		},
	}

	if p.identities != nil {
		if id, ok := p.identities.TryGet(lc.LaunchRequestID); ok {
			s.IsOfflineSubmission = id.IsLocalOnly && !id.IsReconciled
			s.SessionData.CanonicalAttemptID = id.CanonicalAttemptID
		}
	}
	return s
}

// durationSeconds is the override if given, else requestedAt→now.
// Negative durations clamp to zero. Millisecond precision.
func (p *Pipeline) durationSeconds(lc attempt.LaunchContext, end AttemptEnd, now time.Time) float64 {
	var d time.Duration
	switch {
	case end.DurationOverride != nil:
		d = *end.DurationOverride
	default:
		started, err := clock.Parse(lc.RequestedAt)
		if err != nil {
			p.logger.Warn("unparseable attempt start, reporting zero duration",
				"attempt_id", lc.AttemptID,
				"requested_at", lc.RequestedAt,
				"error", err,
			)
			return 0
		}
		d = now.Sub(started)
	}
	if d < 0 {
		d = 0
	}
	return math.Round(d.Seconds()*1000) / 1000
}
