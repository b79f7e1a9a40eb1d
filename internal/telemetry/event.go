package telemetry

import (
	"strings"
	"time"
)

// Well-known step event types.
const (
	EventStepStarted      = "step_started"
	EventStepCompleted    = "step_completed"
	EventDownloadProgress = "download_progress"
	EventError            = "error"
)

// StepInput is what a caller supplies for one step event.
type StepInput struct {
	EventType string
	Action    string
	StepID    string
	StepKind  string
	// StepIndex is set when the event came from a StepCursor.
	StepIndex       *int
	Detail          string
	Progress        float64
	DownloadedBytes int64
	TotalBytes      int64
	Critical        bool
}

// StepEvent is a queued, sequenced step event.
type StepEvent struct {
	AttemptID             string
	LaunchRequestID       string
	AttemptIdempotencyKey string
	LabID                 string
	SequenceNumber        int64
	IdempotencyKey        string
	ClientTimestamp       string
	Input                 StepInput
}

// CompletionStatus is the outcome reported in an attempt summary.
type CompletionStatus string

const (
	StatusCompleted  CompletionStatus = "completed"
	StatusFailed     CompletionStatus = "failed"
	StatusAbandoned  CompletionStatus = "abandoned"
	StatusInProgress CompletionStatus = "in_progress"
)

// NormalizeStatus maps s onto a recognized status. Matching ignores case
// and surrounding whitespace; anything unrecognized becomes abandoned.
func NormalizeStatus(s string) CompletionStatus {
	switch CompletionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusCompleted:
		return StatusCompleted
	case StatusFailed:
		return StatusFailed
	case StatusInProgress:
		return StatusInProgress
	default:
		return StatusAbandoned
	}
}

// AttemptEnd describes how an attempt finished.
type AttemptEnd struct {
	Status string
	Reason string
	// DurationOverride replaces the requestedAt→completedAt duration.
	DurationOverride *time.Duration
}
