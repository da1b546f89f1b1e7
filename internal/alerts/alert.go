package alerts

import (
	"strings"
	"time"
)

// Severity is the normalized alert severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the numeric ordering of a severity (low=1 .. critical=4).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Title returns the severity with the first letter capitalized, for
// display in synthesized incident titles ("Critical", "High", ...).
func (s Severity) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[0])) + string(s[1:])
}

// Alert is the canonical normalized security alert. It is immutable once
// created: the normalizer builds it and nothing downstream mutates it.
type Alert struct {
	AlertID        string
	Source         string
	Category       string
	Severity       Severity
	Title          string
	Description    string
	EntityUser     string
	EntityIP       string
	EntityDevice   string
	EntityLocation string
	Timestamp      time.Time // always UTC
	RawData        string    // JSON copy of the original record, audit only
}

// RejectedRecord describes a record that failed normalization. Rejections
// are per-record: one bad record never aborts the rest of the batch.
type RejectedRecord struct {
	Index  int    `json:"record_index"`
	Reason string `json:"reason"`
}

// Rejection reasons. These are stable strings surfaced in import summaries.
const (
	ReasonMissingTitle         = "missing title"
	ReasonUnparseableTimestamp = "unparseable timestamp"
	ReasonUnrecognizedSeverity = "unrecognized severity"
)
