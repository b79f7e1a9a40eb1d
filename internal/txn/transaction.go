package txn

import (
	"time"

	"github.com/roach88/lifecycle/internal/clock"
)

// InitializationReason is the reason recorded on a draft's first history entry.
const InitializationReason = "initialization"

// Source identifies which authoring flow started a transaction.
type Source string

const (
	SourceGuidedSetup Source = "guided_setup"
	SourceHiddenBuild Source = "hidden_build"
)

// HistoryEntry records one applied transition.
type HistoryEntry struct {
	From   State  `json:"fromState"`
	To     State  `json:"toState"`
	At     string `json:"at"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// Actor describes who drives the transaction.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// LabRef identifies the lab version being published.
type LabRef struct {
	TenantID     string `json:"tenantId"`
	LabID        string `json:"labId"`
	LabVersionID string `json:"labVersionId"`
	ContentHash  string `json:"contentHash"`
}

// Addressables describes the content build profile.
type Addressables struct {
	ProfileName string `json:"profileName,omitempty"`
	BuildTarget string `json:"buildTarget,omitempty"`
	CatalogPath string `json:"catalogPath,omitempty"`
}

// CDN describes where built content is published.
type CDN struct {
	Provider string `json:"provider,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
}

// Artifact is one build output.
type Artifact struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	SHA256    string `json:"sha256"`
}

// RuntimePolicy constrains how the published lab may be launched.
type RuntimePolicy struct {
	MinClientVersion string `json:"minClientVersion,omitempty"`
	AllowOffline     bool   `json:"allowOffline"`
	CacheTTLSeconds  int64  `json:"cacheTtlSeconds,omitempty"`
}

// Severity grades a validation check.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Check is one validation result.
type Check struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Passed   bool     `json:"passed"`
}

// PhaseError is a failure recorded against a phase.
type PhaseError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Phase     Phase  `json:"phase"`
	Retryable bool   `json:"retryable"`
	Terminal  bool   `json:"terminal"`
}

// Transaction is a publish transaction and its audit history.
// Only the Machine should change State or History.
type Transaction struct {
	ID             string
	IdempotencyKey string
	Source         Source
	State          State
	CreatedAt      string
	UpdatedAt      string
	History        []HistoryEntry

	Actor         Actor
	Lab           LabRef
	Addressables  Addressables
	CDN           CDN
	Artifacts     []Artifact
	RuntimePolicy RuntimePolicy
	Checks        []Check
	Errors        []PhaseError
}

// NewDraft creates a transaction in Draft with the synthetic
// initialization history entry.
func NewDraft(id, idempotencyKey string, now time.Time) *Transaction {
	at := clock.Format(now)
	return &Transaction{
		ID:             id,
		IdempotencyKey: idempotencyKey,
		Source:         SourceGuidedSetup,
		State:          StateDraft,
		CreatedAt:      at,
		UpdatedAt:      at,
		History: []HistoryEntry{{
			From:   "",
			To:     StateDraft,
			At:     at,
			Reason: InitializationReason,
		}},
	}
}

// AddCheck appends a validation check.
func (t *Transaction) AddCheck(c Check) {
	t.Checks = append(t.Checks, c)
}

// ChecksPassed reports whether no error-severity check failed.
func (t *Transaction) ChecksPassed() bool {
	for _, c := range t.Checks {
		if !c.Passed && c.Severity == SeverityError {
			return false
		}
	}
	return true
}

// LastEntry returns the most recent history entry.
func (t *Transaction) LastEntry() (HistoryEntry, bool) {
	if len(t.History) == 0 {
		return HistoryEntry{}, false
	}
	return t.History[len(t.History)-1], true
}

// Consistent reports whether State matches the last history entry.
func (t *Transaction) Consistent() bool {
	last, ok := t.LastEntry()
	return ok && last.To == t.State
}
