// Package model defines the core domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// RawRecord is one sensor event parsed from a device activity export.
// It exists only for the duration of a single import run.
type RawRecord struct {
	// Timestamp is the event time in UTC after applying the configured
	// timezone offset to the device-reported local time.
	Timestamp time.Time
	// Activity is the device-reported event type, e.g. "Cat Detected",
	// "Weight Recorded", "Clean Cycle Complete".
	Activity string
	// RawTimestamp preserves the exact timestamp string from the export.
	// Fingerprints are derived from it so they stay stable even if the
	// timezone offset is reconfigured between imports.
	RawTimestamp string
	// Weight is the measured weight in lbs, 0 when the event carries none.
	Weight float64
}

// Fingerprint derives the deduplication key for this record.
// Only device-stable fields participate: the raw timestamp string and the
// activity text. Weight is excluded because repeated exports of the same
// physical event can report slightly different measurements.
func (r *RawRecord) Fingerprint() string {
	data := fmt.Sprintf("%s\x1f%s", r.RawTimestamp, r.Activity)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// HasWeight reports whether the record carries a usable weight reading.
func (r *RawRecord) HasWeight(minWeight float64) bool {
	return r.Weight >= minWeight
}
