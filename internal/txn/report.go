package txn

import (
	"encoding/json"
	"fmt"
)

// ReportSchemaVersion identifies the report layout.
const ReportSchemaVersion = "publish_transaction.v1"

// Report is the JSON form of a Transaction.
// Slices are always non-nil so they encode as [] rather than null.
type Report struct {
	SchemaVersion  string         `json:"schemaVersion"`
	TransactionID  string         `json:"transactionId"`
	IdempotencyKey string         `json:"idempotencyKey"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
	Source         Source         `json:"source"`
	Actor          Actor          `json:"actor"`
	Lab            LabRef         `json:"lab"`
	Addressables   Addressables   `json:"addressables"`
	CDN            CDN            `json:"cdn"`
	Artifacts      []Artifact     `json:"artifacts"`
	RuntimePolicy  RuntimePolicy  `json:"runtimePolicy"`
	Checks         []Check        `json:"checks"`
	Errors         []PhaseError   `json:"errors"`
	State          State          `json:"state"`
	StateHistory   []HistoryEntry `json:"stateHistory"`
}

// Report builds the report for t.
func (t *Transaction) Report() Report {
	return Report{
		SchemaVersion:  ReportSchemaVersion,
		TransactionID:  t.ID,
		IdempotencyKey: t.IdempotencyKey,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Source:         t.Source,
		Actor:          t.Actor,
		Lab:            t.Lab,
		Addressables:   t.Addressables,
		CDN:            t.CDN,
		Artifacts:      nonNil(t.Artifacts),
		RuntimePolicy:  t.RuntimePolicy,
		Checks:         nonNil(t.Checks),
		Errors:         nonNil(t.Errors),
		State:          t.State,
		StateHistory:   nonNil(t.History),
	}
}

// MarshalReport encodes t's report as indented JSON.
func MarshalReport(t *Transaction) ([]byte, error) {
	data, err := json.MarshalIndent(t.Report(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report %s: %w", t.ID, err)
	}
	return data, nil
}

// FromReport rebuilds a Transaction from its report. The report's history
// must be consistent with its state.
func FromReport(r Report) (*Transaction, error) {
	if r.SchemaVersion != ReportSchemaVersion {
		return nil, fmt.Errorf("unsupported report schema %q", r.SchemaVersion)
	}
	t := &Transaction{
		ID:             r.TransactionID,
		IdempotencyKey: r.IdempotencyKey,
		Source:         r.Source,
		State:          r.State,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		History:        r.StateHistory,
		Actor:          r.Actor,
		Lab:            r.Lab,
		Addressables:   r.Addressables,
		CDN:            r.CDN,
		Artifacts:      r.Artifacts,
		RuntimePolicy:  r.RuntimePolicy,
		Checks:         r.Checks,
		Errors:         r.Errors,
	}
	if !t.Consistent() {
		return nil, fmt.Errorf("report %s: state %q does not match history", r.TransactionID, r.State)
	}
	return t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
