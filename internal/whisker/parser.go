// Package whisker parses activity-log CSV exports from smart litter box
// devices into normalized raw records.
package whisker

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/catfall/litterlog/internal/model"
)

// ParseError indicates the file as a whole is not a recognizable activity
// export. Nothing from such a file is ever imported.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "unrecognized activity export: " + e.Reason
}

// ParseResult carries the parsed records plus the count of individual rows
// that were skipped as malformed. Malformed rows are soft errors: they are
// counted, logged, and never fatal to the import.
type ParseResult struct {
	Records   []model.RawRecord
	Malformed int
}

// Parser converts device CSV exports into RawRecords.
//
// The export format is a header row (Activity, Timestamp, Value) followed
// by one row per sensor event. Device timestamps omit the year and use
// 12-hour local time, e.g. "8/12 9:41 pm".
type Parser struct {
	// OffsetHours shifts device-local timestamps back to UTC.
	OffsetHours int
	// ReferenceYear fills in the year the device omits. Zero means the
	// current year at parse time.
	ReferenceYear int
}

// NewParser creates a parser with the given timezone offset.
func NewParser(offsetHours int) *Parser {
	return &Parser{OffsetHours: offsetHours}
}

// Column headers the export must carry, matched case-insensitively.
const (
	colActivity  = "activity"
	colTimestamp = "timestamp"
	colValue     = "value"
)

// ParseFile parses an activity export and returns the normalized records
// ordered by timestamp. A missing or unrecognized header row fails the
// whole file with *ParseError; malformed individual rows are skipped and
// counted.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) (*ParseResult, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &ParseError{Reason: "file is empty"}
	}
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("cannot read header row: %v", err)}
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	refYear := p.ReferenceYear
	if refYear == 0 {
		refYear = time.Now().UTC().Year()
	}

	result := &ParseResult{}
	line := 1
	for {
		row, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			slog.Debug("skipping unreadable row", "line", line, "error", readErr)
			result.Malformed++
			continue
		}

		rec, ok := p.parseRow(row, cols, refYear)
		if !ok {
			slog.Debug("skipping malformed row", "line", line)
			result.Malformed++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].Timestamp.Before(result.Records[j].Timestamp)
	})

	slog.Info("parsed activity export",
		"records", len(result.Records),
		"malformed", result.Malformed)

	return result, nil
}

// mapColumns locates the required columns in the header row.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, 3)
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case colActivity:
			cols[colActivity] = i
		case colTimestamp:
			cols[colTimestamp] = i
		case colValue:
			cols[colValue] = i
		}
	}

	for _, required := range []string{colActivity, colTimestamp, colValue} {
		if _, ok := cols[required]; !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("header is missing %q column", required)}
		}
	}
	return cols, nil
}

func (p *Parser) parseRow(row []string, cols map[string]int, refYear int) (model.RawRecord, bool) {
	max := cols[colActivity]
	for _, idx := range cols {
		if idx > max {
			max = idx
		}
	}
	if len(row) <= max {
		return model.RawRecord{}, false
	}

	activity := strings.TrimSpace(row[cols[colActivity]])
	rawTS := strings.TrimSpace(row[cols[colTimestamp]])
	rawValue := strings.TrimSpace(row[cols[colValue]])

	if activity == "" || rawTS == "" {
		return model.RawRecord{}, false
	}

	ts, ok := parseTimestamp(rawTS, refYear)
	if !ok {
		return model.RawRecord{}, false
	}

	weight, ok := parseWeight(rawValue)
	if !ok {
		return model.RawRecord{}, false
	}

	return model.RawRecord{
		Activity:     activity,
		RawTimestamp: rawTS,
		Timestamp:    ts.Add(-time.Duration(p.OffsetHours) * time.Hour),
		Weight:       weight,
	}, true
}

// timestampLayouts lists the accepted device timestamp formats, most
// common first. Yearless layouts get refYear substituted in.
var timestampLayouts = []string{
	"1/2 3:04 PM",
	"1/2/2006 3:04 PM",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string, refYear int) (time.Time, bool) {
	normalized := strings.ToUpper(raw)
	for _, layout := range timestampLayouts {
		ts, err := time.ParseInLocation(layout, normalized, time.UTC)
		if err != nil {
			continue
		}
		if ts.Year() == 0 {
			ts = time.Date(refYear, ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)
		}
		return ts, true
	}
	return time.Time{}, false
}

// parseWeight extracts a weight in lbs from the value column. Events that
// carry no weight (status messages, cycle markers) report 0. A value that
// claims to be a weight but does not parse marks the row malformed.
func parseWeight(raw string) (float64, bool) {
	if raw == "" {
		return 0, true
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "lbs") {
		numeric := strings.TrimSpace(strings.ReplaceAll(lower, "lbs", ""))
		w, err := strconv.ParseFloat(numeric, 64)
		if err != nil || w < 0 {
			return 0, false
		}
		return w, true
	}

	// Bare numeric values are accepted as weights too.
	if w, err := strconv.ParseFloat(raw, 64); err == nil && w >= 0 {
		return w, true
	}

	// Non-numeric values (e.g. status text) are not weights, but the row
	// itself is still valid.
	return 0, true
}
