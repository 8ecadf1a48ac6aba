package model

import (
	"fmt"
	"time"
)

// CatProfile represents one cat known to the household.
// TargetWeight is the reference weight (lbs) used by the classifier.
type CatProfile struct {
	CreatedAt    time.Time
	Birthdate    *time.Time
	Name         string
	ID           int64
	TargetWeight float64
}

// Age renders the cat's age relative to now, or "unknown" when no
// birthdate is recorded.
func (c *CatProfile) Age(now time.Time) string {
	if c.Birthdate == nil || now.Before(*c.Birthdate) {
		return "unknown"
	}
	birth := *c.Birthdate
	months := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	if months >= 12 {
		return fmt.Sprintf("%d yr %d mo", months/12, months%12)
	}
	return fmt.Sprintf("%d mo", months)
}
