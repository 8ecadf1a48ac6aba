package model

import "time"

// Outcome is the classification result recorded on a visit.
type Outcome string

// Classification outcomes.
const (
	// OutcomeAssigned means the visit matched a cat profile within tolerance.
	OutcomeAssigned Outcome = "assigned"
	// OutcomeUnknown means the weight was plausible but no profile matched.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeError means the weight reading was missing or implausible,
	// suggesting a sensor fault rather than an ambiguous match.
	OutcomeError Outcome = "error"
	// OutcomeSystem marks machine events (clean cycles, resets) that are
	// not cat visits at all. They are kept for machine-health reporting
	// but excluded from review.
	OutcomeSystem Outcome = "system"
)

// ValidOutcome reports whether s names a known outcome.
func ValidOutcome(s string) bool {
	switch Outcome(s) {
	case OutcomeAssigned, OutcomeUnknown, OutcomeError, OutcomeSystem:
		return true
	}
	return false
}

// Visit is the persisted unit of history: one deduplicated sensor event,
// optionally attributed to a cat. History is append-only; corrections
// mutate CatID/Outcome/Note but rows are never deleted, only hidden.
type Visit struct {
	RecordedAt  time.Time
	CreatedAt   time.Time
	CatID       *int64
	Fingerprint string
	Activity    string
	Outcome     Outcome
	Note        string
	ImportID    string
	ID          int64
	Weight      float64
	Hidden      bool
}

// Result is the outcome of classifying a single record. CatID is set only
// for OutcomeAssigned.
type Result struct {
	CatID   *int64
	Outcome Outcome
	Note    string
}
