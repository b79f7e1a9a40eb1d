package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/clock"
	"github.com/roach88/lifecycle/internal/telemetry"
)

// DefaultStart is the fake clock's starting instant.
var DefaultStart = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

// Options configures a run. The zero value is usable.
type Options struct {
	// Config is the base pipeline tuning; scenario overrides apply on
	// top. Zero means telemetry.DefaultConfig.
	Config *telemetry.Config

	// Start overrides DefaultStart.
	Start time.Time

	// Sink also receives every batch, e.g. a store outbox.
	Sink telemetry.Sink

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Outcome records what one action did.
type Outcome struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Accepted bool   `json:"accepted"`
	Flushed  int    `json:"flushed,omitempty"`
}

// Result is the observable effect of a run.
type Result struct {
	Scenario string            `json:"scenario"`
	Identity attempt.Identity  `json:"identity"`
	Outcomes []Outcome         `json:"outcomes"`
	Batches  []telemetry.Batch `json:"batches"`
	Pending  int               `json:"pending"`
}

// recorder captures raw batches in delivery order.
type recorder struct {
	mu      sync.Mutex
	batches [][]byte
}

func (r *recorder) Send(_ context.Context, batch []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]byte(nil), batch...))
	return nil
}

// Run executes s and returns what the pipeline delivered.
//
// Every run uses a fresh registry, session and pipeline, so results do
// not depend on earlier runs.
func Run(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	start := opts.Start
	if start.IsZero() {
		start = DefaultStart
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := configFor(s, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: telemetry config: %w", s.Name, err)
	}

	fc := clock.Fake(start)
	registry := attempt.NewRegistry(
		attempt.WithIDGenerator(attempt.NewCountingGenerator("id")),
		attempt.WithClock(fc),
		attempt.WithLogger(logger),
	)
	session := attempt.NewSession()

	rec := &recorder{}
	var sink telemetry.Sink = rec
	if opts.Sink != nil {
		sink = telemetry.NewBroadcaster(rec, opts.Sink)
	}

	pipeline := telemetry.New(session, attempt.NewRegistryValidator(registry), sink,
		telemetry.WithConfig(cfg),
		telemetry.WithClock(fc),
		telemetry.WithLogger(logger),
		telemetry.WithMetrics(opts.Metrics),
		telemetry.WithIdentityLookup(registry),
	)

	identity := registry.CreateLocalFirst(s.LabID)
	session.Begin(identity)
	if s.LabVersionID != "" {
		session.ResolveVersion(s.LabVersionID, s.LaunchedFromCache)
	}

	logger.Debug("scenario started", "scenario", s.Name, "attempt_id", identity.AttemptID)

	outcomes := make([]Outcome, 0, len(s.Actions))
	for i, a := range s.Actions {
		out := Outcome{Index: i, Kind: a.Kind()}
		switch out.Kind {
		case KindStep:
			out.Accepted = pipeline.QueueStepEvent(ctx, a.Step.Input())
		case KindHint:
			out.Accepted = pipeline.RecordHint(ctx)
		case KindReset:
			out.Accepted = pipeline.RecordReset(ctx)
		case KindAdvance:
			d, err := time.ParseDuration(a.Advance)
			if err != nil {
				return nil, fmt.Errorf("actions[%d]: advance: %w", i, err)
			}
			fc.Advance(d)
			out.Accepted = true
		case KindFlush:
			out.Flushed = pipeline.Flush(ctx)
			out.Accepted = true
		case KindTick:
			out.Flushed = pipeline.Tick(ctx)
			out.Accepted = true
		case KindReconcile:
			out.Accepted = registry.TryReconcile(identity.LaunchRequestID, a.Reconcile)
		case KindEnd:
			out.Accepted = pipeline.EmitAttemptEnd(ctx, a.End.AttemptEnd())
		default:
			return nil, fmt.Errorf("actions[%d]: invalid action %v", i, a.Kinds())
		}
		outcomes = append(outcomes, out)
	}

	final, _ := registry.TryGet(identity.LaunchRequestID)
	result := &Result{
		Scenario: s.Name,
		Identity: final,
		Outcomes: outcomes,
		Batches:  []telemetry.Batch{},
		Pending:  pipeline.Pending(),
	}
	for i, raw := range rec.batches {
		b, err := telemetry.DecodeBatch(raw)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		result.Batches = append(result.Batches, b)
	}
	return result, nil
}

func configFor(s *Scenario, opts Options) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if o := s.Telemetry; o != nil {
		if o.BatchSize != nil {
			cfg.BatchSize = *o.BatchSize
		}
		if o.QueueCapacity != nil {
			cfg.QueueCapacity = *o.QueueCapacity
		}
		if o.OverflowPolicy != nil {
			cfg.OverflowPolicy = telemetry.OverflowPolicy(*o.OverflowPolicy)
		}
	}
	return cfg
}

// Summaries returns every attempt summary across the result's batches.
func (r *Result) Summaries() []telemetry.AttemptSummary {
	var out []telemetry.AttemptSummary
	for _, b := range r.Batches {
		out = append(out, b.Attempts...)
	}
	return out
}

// StepEvents returns every step event across the result's batches, in
// delivery order.
func (r *Result) StepEvents() []telemetry.StepEventEntry {
	var out []telemetry.StepEventEntry
	for _, b := range r.Batches {
		out = append(out, b.StepEvents...)
	}
	return out
}
