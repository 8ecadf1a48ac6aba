package model

import "time"

// ImportBatch is the immutable record of one completed import operation.
type ImportBatch struct {
	CreatedAt   time.Time
	ID          string
	Filename    string
	BackupPath  string
	Accepted    int
	Duplicates  int
	Blacklisted int
	Unknown     int
	Errors      int
	System      int
	Malformed   int
}

// ImportSummary is returned to the caller after an import. It mirrors the
// persisted ImportBatch plus transient details that are not stored.
type ImportSummary struct {
	BatchID     string
	BackupPath  string
	BackupErr   error
	Accepted    int
	Duplicates  int
	Blacklisted int
	Unknown     int
	Errors      int
	System      int
	Malformed   int
}

// Total returns the number of rows the import examined after parsing.
func (s *ImportSummary) Total() int {
	return s.Accepted + s.Duplicates + s.Blacklisted
}
