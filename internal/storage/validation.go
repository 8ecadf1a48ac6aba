// Package storage provides the data persistence layer for litterlog.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/catfall/litterlog/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidVisit     = errors.New("invalid visit")
	ErrInvalidBatch     = errors.New("invalid import batch")
	ErrInvalidProfile   = errors.New("invalid cat profile")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateVisits validates a slice of visits.
func validateVisits(visits []model.Visit) error {
	if visits == nil {
		return fmt.Errorf("%w: visits", ErrNilParameter)
	}
	if len(visits) == 0 {
		return fmt.Errorf("%w: visits", ErrEmptySlice)
	}

	for i, v := range visits {
		if err := validateVisit(&v); err != nil {
			return fmt.Errorf("visit at index %d: %w", i, err)
		}
	}
	return nil
}

// validateVisit validates a single visit.
func validateVisit(v *model.Visit) error {
	if v == nil {
		return fmt.Errorf("%w: visit", ErrNilParameter)
	}
	if v.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidVisit)
	}
	if v.RecordedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidVisit)
	}
	if v.Activity == "" {
		return fmt.Errorf("%w: missing activity", ErrInvalidVisit)
	}
	if !model.ValidOutcome(string(v.Outcome)) {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidVisit, v.Outcome)
	}
	if v.Outcome == model.OutcomeAssigned && v.CatID == nil {
		return fmt.Errorf("%w: assigned visit without cat", ErrInvalidVisit)
	}
	if v.Outcome != model.OutcomeAssigned && v.CatID != nil {
		return fmt.Errorf("%w: %s visit with cat set", ErrInvalidVisit, v.Outcome)
	}
	return nil
}

// validateImportBatch validates an import batch.
func validateImportBatch(batch *model.ImportBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if batch.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidBatch)
	}
	if batch.Filename == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidBatch)
	}
	return nil
}

// validateProfileInput validates cat profile creation parameters.
func validateProfileInput(name string, targetWeight float64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}
	if targetWeight <= 0 {
		return fmt.Errorf("%w: target weight must be positive", ErrInvalidProfile)
	}
	return nil
}
