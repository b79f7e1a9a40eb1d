package idempotency

import (
	"strconv"
	"strings"
)

// Unknown replaces blank key components.
const Unknown = "unknown"

const (
	publishPrefix = "publish"
	stepPrefix    = "step"
)

// BuildKey derives the publish idempotency key for a lab version.
//
// Each component is trimmed; blank or whitespace-only components become
// "unknown". The joined key is lower-cased as a whole.
//
//	BuildKey("Tenant-1", " lab-1 ", "", "ABC") == "publish:tenant-1:lab-1:unknown:abc"
func BuildKey(tenantID, labID, labVersionID, contentHash string) string {
	parts := []string{
		publishPrefix,
		normalizeComponent(tenantID),
		normalizeComponent(labID),
		normalizeComponent(labVersionID),
		normalizeComponent(contentHash),
	}
	return strings.ToLower(strings.Join(parts, ":"))
}

// StepKey derives the idempotency key of a telemetry step event.
// The attempt id is used verbatim.
func StepKey(attemptID string, sequence int64) string {
	return stepPrefix + ":" + attemptID + ":" + strconv.FormatInt(sequence, 10)
}

func normalizeComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
