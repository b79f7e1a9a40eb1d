// Package scenario replays scripted attempts through the telemetry
// pipeline.
//
// A scenario is a YAML file describing one launch: the lab, the content
// version it resolves to, and an ordered list of actions (step events,
// hints, resets, clock advances, flushes, ticks, reconciliation and the
// attempt end). Run executes it against a real registry, session and
// pipeline on a fake clock with counting id generators, so two runs of
// the same file produce byte-identical batches. Tests compare those
// batches against golden files.
package scenario
