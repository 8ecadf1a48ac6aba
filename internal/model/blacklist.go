package model

import "time"

// BlacklistEntry marks a fingerprint to be silently dropped on every
// future import. Entries never expire; removing one is an explicit
// restore operation.
type BlacklistEntry struct {
	CreatedAt   time.Time
	Fingerprint string
	Reason      string
}
