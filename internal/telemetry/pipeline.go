package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/clock"
	"github.com/roach88/lifecycle/internal/idempotency"
)

// Back-off bounds applied after a sink failure.
const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
)

// IdentityLookup resolves the registry record behind a launch. It is
// satisfied by *attempt.Registry.
type IdentityLookup interface {
	TryGet(launchRequestID string) (attempt.Identity, bool)
}

// Pipeline sequences, batches and finalizes attempt telemetry.
//
// Thread-safety: all methods are safe for concurrent use. Every method
// holds one mutex for its whole duration, including the sink call.
type Pipeline struct {
	mu sync.Mutex

	provider   attempt.ContextProvider
	validator  attempt.LineageValidator
	sink       Sink
	identities IdentityLookup

	cfg     Config
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics

	queue     *pendingQueue
	attempts  map[string]*attemptState
	finalized map[string]struct{}

	lastFlush time.Time
	backoff   time.Duration
	retryAt   time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces DefaultConfig. Invalid fields fall back to their
// defaults; callers wanting errors should run Config.Validate first.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		p.cfg = cfg
	}
}

// WithClock sets the clock used for timestamps, intervals and durations.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics enables instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithIdentityLookup lets summaries report offline submission and the
// canonical attempt id known at finalization time.
func WithIdentityLookup(l IdentityLookup) Option {
	return func(p *Pipeline) {
		p.identities = l
	}
}

// New creates a pipeline reading launch contexts from provider and
// delivering batches to sink. A nil validator skips lineage checks; a nil
// sink discards batches.
func New(provider attempt.ContextProvider, validator attempt.LineageValidator, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:  provider,
		validator: validator,
		sink:      sink,
		cfg:       DefaultConfig(),
		clock:     clock.Real(),
		logger:    slog.Default(),
		attempts:  make(map[string]*attemptState),
		finalized: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sink == nil {
		p.sink = SinkFunc(func(context.Context, []byte) error { return nil })
	}
	p.cfg = sanitize(p.cfg)
	p.queue = newPendingQueue(p.cfg.QueueCapacity, p.cfg.OverflowPolicy)
	p.lastFlush = p.clock.Now()
	return p
}

func sanitize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.ProgressInterval < 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	if cfg.ProgressDelta < 0 {
		cfg.ProgressDelta = def.ProgressDelta
	}
	if cfg.QueueCapacity < 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	// A bounded queue must hold a full batch or the inline flush never fires.
	if cfg.QueueCapacity > 0 && cfg.QueueCapacity < cfg.BatchSize {
		cfg.QueueCapacity = cfg.BatchSize
	}
	if _, err := ParseOverflowPolicy(string(cfg.OverflowPolicy)); err != nil {
		cfg.OverflowPolicy = def.OverflowPolicy
	}
	if cfg.DeviceType == "" {
		cfg.DeviceType = def.DeviceType
	}
	return cfg
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// QueueStepEvent sequences in under the current attempt and queues it.
// Returns false when the event was dropped. Reaching BatchSize pending
// events triggers a flush inline unless the sink is backing off.
func (p *Pipeline) QueueStepEvent(ctx context.Context, in StepInput) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lc, err := p.currentContext(false)
	if err != nil {
		p.drop(err)
		return false
	}
	if p.isFinalized(lc.AttemptID) {
		p.drop(&DropError{Reason: DropFinalized, AttemptID: lc.AttemptID, Err: fmt.Errorf("step event %q after summary", in.EventType)})
		return false
	}

	now := p.clock.Now()
	st := p.stateFor(lc.AttemptID)

	if in.EventType == EventDownloadProgress &&
		!st.admitProgress(in.Progress, now, p.cfg.ProgressInterval, p.cfg.ProgressDelta) {
		p.metrics.recordDropped(DropThrottled)
		p.logger.Debug("download progress throttled",
			"attempt_id", lc.AttemptID,
			"progress", in.Progress,
		)
		return false
	}

	if p.queue.Full() && p.cfg.OverflowPolicy == DropNewest {
		p.drop(&DropError{Reason: DropOverflow, AttemptID: lc.AttemptID, Err: fmt.Errorf("queue at capacity %d", p.cfg.QueueCapacity)})
		return false
	}

	if in.Critical {
		st.criticalErrors++
	}
	seq := st.next()
	ev := StepEvent{
		AttemptID:             lc.AttemptID,
		LaunchRequestID:       lc.LaunchRequestID,
		AttemptIdempotencyKey: lc.IdempotencyKey,
		LabID:                 lc.LabID,
		SequenceNumber:        seq,
		IdempotencyKey:        idempotency.StepKey(lc.AttemptID, seq),
		ClientTimestamp:       clock.Format(now),
		Input:                 in,
	}
	if evicted, dropped := p.queue.Enqueue(ev); dropped {
		p.drop(&DropError{
			Reason:    DropOverflow,
			AttemptID: evicted.AttemptID,
			Err:       fmt.Errorf("evicted sequence %d at capacity %d", evicted.SequenceNumber, p.cfg.QueueCapacity),
		})
	}
	p.metrics.recordQueued(p.queue.Len())

	p.logger.Debug("step event queued",
		"attempt_id", lc.AttemptID,
		"seq", seq,
		"event_type", in.EventType,
	)

	if p.queue.Len() >= p.cfg.BatchSize && !p.backingOff(now) {
		p.flushLocked(ctx, now)
	}
	return true
}

// RecordHint counts a hint against the current attempt.
func (p *Pipeline) RecordHint(ctx context.Context) bool {
	return p.bump(func(st *attemptState) { st.hints++ }, "hint")
}

// RecordReset counts a reset against the current attempt.
func (p *Pipeline) RecordReset(ctx context.Context) bool {
	return p.bump(func(st *attemptState) { st.resets++ }, "reset")
}

func (p *Pipeline) bump(apply func(*attemptState), what string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lc, err := p.currentContext(false)
	if err != nil {
		p.drop(err)
		return false
	}
	if p.isFinalized(lc.AttemptID) {
		p.drop(&DropError{Reason: DropFinalized, AttemptID: lc.AttemptID, Err: fmt.Errorf("%s after summary", what)})
		return false
	}
	apply(p.stateFor(lc.AttemptID))
	return true
}

// Flush sends up to BatchSize of the oldest pending events as one batch,
// ignoring any back-off. Returns the number of events handed to the sink.
func (p *Pipeline) Flush(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ctx, p.clock.Now())
}

// FlushAll drains the pending queue in BatchSize batches.
func (p *Pipeline) FlushAll(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drainLocked(ctx, p.clock.Now())
}

// Tick flushes one batch when FlushInterval has elapsed since the last
// flush and the sink is not backing off. Hosts call it periodically.
func (p *Pipeline) Tick(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if now.Sub(p.lastFlush) < p.cfg.FlushInterval || p.backingOff(now) {
		return 0
	}
	return p.flushLocked(ctx, now)
}

// Run calls Tick every interval until ctx is done, then drains the
// pending queue with a context that outlives ctx. A non-positive interval
// falls back to FlushInterval. Always returns ctx.Err().
func (p *Pipeline) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = p.cfg.FlushInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.FlushAll(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Pending returns the number of queued step events.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// IsFinalized reports whether attemptID has emitted its summary.
func (p *Pipeline) IsFinalized(attemptID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isFinalized(attemptID)
}

func (p *Pipeline) isFinalized(attemptID string) bool {
	_, ok := p.finalized[attemptID]
	return ok
}

// stateFor returns the state of attemptID, initializing it on first
// sighting.
func (p *Pipeline) stateFor(attemptID string) *attemptState {
	st, ok := p.attempts[attemptID]
	if !ok {
		st = &attemptState{}
		p.attempts[attemptID] = st
		p.logger.Debug("attempt telemetry started", "attempt_id", attemptID)
	}
	return st
}

func (p *Pipeline) currentContext(requireResolvedVersion bool) (attempt.LaunchContext, error) {
	var lc attempt.LaunchContext
	ok := false
	if p.provider != nil {
		lc, ok = p.provider.CurrentLaunchContext()
	}
	if !ok {
		return attempt.LaunchContext{}, &DropError{Reason: DropMissingContext, Err: ErrMissingContext}
	}
	if p.validator != nil {
		if err := p.validator.ValidateLineage(lc, requireResolvedVersion); err != nil {
			return attempt.LaunchContext{}, &DropError{
				Reason:    DropInvalidLineage,
				AttemptID: lc.AttemptID,
				Err:       fmt.Errorf("%w: %w", ErrInvalidLineage, err),
			}
		}
	}
	return lc, nil
}

// drop logs and counts a lost event. err is always a *DropError.
func (p *Pipeline) drop(err error) {
	reason := DropMissingContext
	var de *DropError
	if errors.As(err, &de) {
		reason = de.Reason
	}
	p.metrics.recordDropped(reason)
	p.logger.Warn("telemetry dropped", "reason", string(reason), "error", err)
}

func (p *Pipeline) flushLocked(ctx context.Context, now time.Time) int {
	p.lastFlush = now
	events := p.queue.DequeueN(p.cfg.BatchSize)
	if len(events) == 0 {
		return 0
	}
	p.send(ctx, now, stepBatch(events))
	return len(events)
}

func (p *Pipeline) drainLocked(ctx context.Context, now time.Time) int {
	total := 0
	for p.queue.Len() > 0 {
		total += p.flushLocked(ctx, now)
	}
	return total
}

// send encodes b and hands it to the sink. A failed batch is logged,
// counted and lost; it also starts or extends the back-off window.
func (p *Pipeline) send(ctx context.Context, now time.Time, b Batch) error {
	kind := b.Kind()
	data, err := b.Encode()
	if err != nil {
		p.logger.Error("telemetry batch encode failed", "kind", kind, "error", err)
		return err
	}

	if err := p.sink.Send(ctx, data); err != nil {
		p.metrics.recordSendFailure(p.queue.Len())
		if p.backoff == 0 {
			p.backoff = initialBackoff
		} else {
			p.backoff = min(p.backoff*2, maxBackoff)
		}
		p.retryAt = now.Add(p.backoff)
		p.logger.Warn("telemetry batch send failed",
			"kind", kind,
			"step_events", len(b.StepEvents),
			"backoff", p.backoff,
			"error", err,
		)
		return fmt.Errorf("send %s batch: %w", kind, err)
	}

	p.backoff = 0
	p.retryAt = time.Time{}
	p.metrics.recordSent(kind, p.queue.Len())
	p.logger.Debug("telemetry batch sent",
		"kind", kind,
		"step_events", len(b.StepEvents),
		"bytes", len(data),
	)
	return nil
}

func (p *Pipeline) backingOff(now time.Time) bool {
	return now.Before(p.retryAt)
}
