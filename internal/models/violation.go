package models

import "time"

// Severity is the ordinal classification of a content-safety finding.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity (none=0 .. critical=4).
func (s Severity) Rank() int { return severityRank[s] }

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// Finding is one issue reported by the analysis capability.
type Finding struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ViolationCheck is the outcome of one content analysis, keyed by the
// fingerprint of the normalized content. Evaluated=false means the content
// was below the minimum thresholds and never reached the capability; it is
// not a "clean" verdict.
type ViolationCheck struct {
	Fingerprint string    `json:"fingerprint"`
	Evaluated   bool      `json:"evaluated"`
	Clean       bool      `json:"clean"`
	Severity    Severity  `json:"severity"`
	Findings    []Finding `json:"findings,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}
