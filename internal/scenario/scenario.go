package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lifecycle/internal/telemetry"
)

// Scenario describes one scripted attempt.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	LabID string `yaml:"lab_id"`

	// LabVersionID is resolved right after launch. Leave it empty to
	// exercise an attempt whose content version never resolved.
	LabVersionID string `yaml:"lab_version_id,omitempty"`

	LaunchedFromCache bool `yaml:"launched_from_cache,omitempty"`

	// Telemetry overrides pipeline tuning for this scenario only.
	Telemetry *TelemetryOverrides `yaml:"telemetry,omitempty"`

	Actions []Action `yaml:"actions"`
}

// TelemetryOverrides adjusts the pipeline config a scenario runs with.
type TelemetryOverrides struct {
	BatchSize      *int    `yaml:"batch_size,omitempty"`
	QueueCapacity  *int    `yaml:"queue_capacity,omitempty"`
	OverflowPolicy *string `yaml:"overflow_policy,omitempty"`
}

// Action is one scripted operation. Exactly one field must be set.
type Action struct {
	Step      *StepAction `yaml:"step,omitempty"`
	Hint      bool        `yaml:"hint,omitempty"`
	Reset     bool        `yaml:"reset,omitempty"`
	Advance   string      `yaml:"advance,omitempty"`
	Flush     bool        `yaml:"flush,omitempty"`
	Tick      bool        `yaml:"tick,omitempty"`
	Reconcile string      `yaml:"reconcile,omitempty"`
	End       *EndAction  `yaml:"end,omitempty"`
}

// StepAction queues a step event.
type StepAction struct {
	Type            string  `yaml:"type"`
	Action          string  `yaml:"action,omitempty"`
	StepID          string  `yaml:"step_id,omitempty"`
	StepKind        string  `yaml:"step_kind,omitempty"`
	Detail          string  `yaml:"detail,omitempty"`
	Progress        float64 `yaml:"progress,omitempty"`
	DownloadedBytes int64   `yaml:"downloaded_bytes,omitempty"`
	TotalBytes      int64   `yaml:"total_bytes,omitempty"`
	Critical        bool    `yaml:"critical,omitempty"`
}

// EndAction finalizes the attempt.
type EndAction struct {
	Status          string   `yaml:"status"`
	Reason          string   `yaml:"reason,omitempty"`
	DurationSeconds *float64 `yaml:"duration_seconds,omitempty"`
}

// Action kinds.
const (
	KindStep      = "step"
	KindHint      = "hint"
	KindReset     = "reset"
	KindAdvance   = "advance"
	KindFlush     = "flush"
	KindTick      = "tick"
	KindReconcile = "reconcile"
	KindEnd       = "end"
)

// Kinds returns the names of every field set on a, in declaration order.
func (a Action) Kinds() []string {
	var kinds []string
	if a.Step != nil {
		kinds = append(kinds, KindStep)
	}
	if a.Hint {
		kinds = append(kinds, KindHint)
	}
	if a.Reset {
		kinds = append(kinds, KindReset)
	}
	if a.Advance != "" {
		kinds = append(kinds, KindAdvance)
	}
	if a.Flush {
		kinds = append(kinds, KindFlush)
	}
	if a.Tick {
		kinds = append(kinds, KindTick)
	}
	if a.Reconcile != "" {
		kinds = append(kinds, KindReconcile)
	}
	if a.End != nil {
		kinds = append(kinds, KindEnd)
	}
	return kinds
}

// Kind returns the single kind of a valid action.
func (a Action) Kind() string {
	kinds := a.Kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Input converts the action into a pipeline step input.
func (s StepAction) Input() telemetry.StepInput {
	return telemetry.StepInput{
		EventType:       s.Type,
		Action:          s.Action,
		StepID:          s.StepID,
		StepKind:        s.StepKind,
		Detail:          s.Detail,
		Progress:        s.Progress,
		DownloadedBytes: s.DownloadedBytes,
		TotalBytes:      s.TotalBytes,
		Critical:        s.Critical,
	}
}

// AttemptEnd converts the action into a pipeline attempt end.
func (e EndAction) AttemptEnd() telemetry.AttemptEnd {
	end := telemetry.AttemptEnd{Status: e.Status, Reason: e.Reason}
	if e.DurationSeconds != nil {
		d := time.Duration(*e.DurationSeconds * float64(time.Second))
		end.DurationOverride = &d
	}
	return end
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "reconcil:" vs "reconcile:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}

	if s.Description == "" {
		return errors.New("description is required")
	}

	if s.LabID == "" {
		return errors.New("lab_id is required")
	}

	if len(s.Actions) == 0 {
		return errors.New("actions list is required and must be non-empty")
	}

	if o := s.Telemetry; o != nil {
		if o.BatchSize != nil && *o.BatchSize < 1 {
			return fmt.Errorf("telemetry.batch_size must be positive, got %d", *o.BatchSize)
		}
		if o.QueueCapacity != nil && *o.QueueCapacity < 0 {
			return fmt.Errorf("telemetry.queue_capacity must not be negative, got %d", *o.QueueCapacity)
		}
		if o.BatchSize != nil && o.QueueCapacity != nil && *o.QueueCapacity > 0 && *o.QueueCapacity < *o.BatchSize {
			return fmt.Errorf("telemetry.queue_capacity %d is below telemetry.batch_size %d", *o.QueueCapacity, *o.BatchSize)
		}
		if o.OverflowPolicy != nil {
			if _, err := telemetry.ParseOverflowPolicy(*o.OverflowPolicy); err != nil {
				return fmt.Errorf("telemetry.overflow_policy: %w", err)
			}
		}
	}

	for i, a := range s.Actions {
		if err := validateAction(i, a); err != nil {
			return err
		}
	}

	return nil
}

// validateAction validates a single action based on its kind.
func validateAction(index int, a Action) error {
	kinds := a.Kinds()
	switch len(kinds) {
	case 0:
		return fmt.Errorf("actions[%d]: no action set", index)
	case 1:
	default:
		return fmt.Errorf("actions[%d]: exactly one action per entry, got %v", index, kinds)
	}

	switch kinds[0] {
	case KindStep:
		if a.Step.Type == "" {
			return fmt.Errorf("actions[%d]: step type is required", index)
		}
	case KindAdvance:
		d, err := time.ParseDuration(a.Advance)
		if err != nil {
			return fmt.Errorf("actions[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("actions[%d]: advance must be positive, got %s", index, a.Advance)
		}
	case KindEnd:
		if a.End.DurationSeconds != nil && *a.End.DurationSeconds < 0 {
			return fmt.Errorf("actions[%d]: end duration_seconds must not be negative", index)
		}
	}

	return nil
}
