package telemetry

import (
	"encoding/json"
	"fmt"
)

// ContractVersion identifies the batch layout.
const ContractVersion = "attempt_telemetry.v1"

// Batch is one payload handed to the sink. Both slices are always
// non-nil.
type Batch struct {
	ContractVersion string           `json:"contractVersion"`
	Attempts        []AttemptSummary `json:"attempts"`
	StepEvents      []StepEventEntry `json:"step_events"`
}

// AttemptSummary is the terminal payload of an attempt.
type AttemptSummary struct {
	AttemptID           string           `json:"attempt_id"`
	LaunchRequestID     string           `json:"launchRequestId"`
	IdempotencyKey      string           `json:"idempotency_key"`
	LabID               string           `json:"lab_id"`
	LabVersionID        string           `json:"lab_version_id"`
	StartedAt           string           `json:"started_at"`
	CompletedAt         string           `json:"completed_at"`
	DurationSeconds     float64          `json:"duration_seconds"`
	CompletionStatus    CompletionStatus `json:"completion_status"`
	HintsUsed           int              `json:"hints_used"`
	ResetsUsed          int              `json:"resets_used"`
	CriticalErrors      int              `json:"critical_errors"`
	IsOfflineSubmission bool             `json:"is_offline_submission"`
	DeviceType          string           `json:"device_type"`
	SessionData         SessionData      `json:"session_data"`
}

// SessionData carries context about how the attempt ran.
type SessionData struct {
	CompletionReason   string `json:"completion_reason"`
	LaunchedFromCache  bool   `json:"launched_from_cache"`
	CanonicalAttemptID string `json:"canonical_attempt_id,omitempty"`
}

// StepEventEntry is the wire form of a StepEvent.
type StepEventEntry struct {
	AttemptID             string    `json:"attempt_id"`
	LaunchRequestID       string    `json:"launchRequestId"`
	AttemptIdempotencyKey string    `json:"attempt_idempotency_key"`
	IdempotencyKey        string    `json:"idempotency_key"`
	LabID                 string    `json:"lab_id"`
	EventType             string    `json:"event_type"`
	EventData             EventData `json:"event_data"`
	ClientTimestamp       string    `json:"client_timestamp"`
	SequenceNumber        int64     `json:"sequence_number"`
}

// EventData is the event-specific block of a step event.
type EventData struct {
	Action          string  `json:"action"`
	StepGUID        string  `json:"step_guid"`
	StepType        string  `json:"step_type"`
	StepIndex       *int    `json:"step_index,omitempty"`
	Detail          string  `json:"detail"`
	ProgressPercent float64 `json:"progress_percent"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	Critical        bool    `json:"critical"`
}

func entryFor(ev StepEvent) StepEventEntry {
	return StepEventEntry{
		AttemptID:             ev.AttemptID,
		LaunchRequestID:       ev.LaunchRequestID,
		AttemptIdempotencyKey: ev.AttemptIdempotencyKey,
		IdempotencyKey:        ev.IdempotencyKey,
		LabID:                 ev.LabID,
		EventType:             ev.Input.EventType,
		EventData: EventData{
			Action:          ev.Input.Action,
			StepGUID:        ev.Input.StepID,
			StepType:        ev.Input.StepKind,
			StepIndex:       ev.Input.StepIndex,
			Detail:          ev.Input.Detail,
			ProgressPercent: ev.Input.Progress,
			DownloadedBytes: ev.Input.DownloadedBytes,
			TotalBytes:      ev.Input.TotalBytes,
			Critical:        ev.Input.Critical,
		},
		ClientTimestamp: ev.ClientTimestamp,
		SequenceNumber:  ev.SequenceNumber,
	}
}

func stepBatch(events []StepEvent) Batch {
	entries := make([]StepEventEntry, len(events))
	for i, ev := range events {
		entries[i] = entryFor(ev)
	}
	return Batch{
		ContractVersion: ContractVersion,
		Attempts:        []AttemptSummary{},
		StepEvents:      entries,
	}
}

func summaryBatch(s AttemptSummary) Batch {
	return Batch{
		ContractVersion: ContractVersion,
		Attempts:        []AttemptSummary{s},
		StepEvents:      []StepEventEntry{},
	}
}

// Encode serializes b as compact JSON.
func (b Batch) Encode() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// DecodeBatch parses a batch produced by Encode.
func DecodeBatch(data []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	if b.ContractVersion != ContractVersion {
		return Batch{}, fmt.Errorf("decode batch: unsupported contract %q", b.ContractVersion)
	}
	return b, nil
}

// Kind reports "summary" for a batch carrying an attempt summary and
// "steps" otherwise.
func (b Batch) Kind() string {
	if len(b.Attempts) > 0 {
		return KindSummary
	}
	return KindSteps
}

// Batch kinds.
const (
	KindSteps   = "steps"
	KindSummary = "summary"
)
