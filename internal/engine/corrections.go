package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/catfall/litterlog/internal/model"
)

// Reassign sets the visit's cat by hand. A nil catID clears the assignment
// back to unknown. The correction sticks: re-importing the same export
// never touches an existing row. Reassigning to the current cat is a no-op.
func (e *Engine) Reassign(ctx context.Context, visitID int64, catID *int64) (*model.Visit, error) {
	visit, err := e.store.GetVisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	outcome := model.OutcomeUnknown
	if catID != nil {
		if _, err := e.store.GetCatByID(ctx, *catID); err != nil {
			return nil, fmt.Errorf("cat %d: %w", *catID, err)
		}
		outcome = model.OutcomeAssigned
	}

	if err := e.store.UpdateVisitAssignment(ctx, visitID, catID, outcome, ""); err != nil {
		return nil, err
	}

	slog.Info("reassigned visit", "visit_id", visitID, "cat_id", catID, "outcome", outcome)

	visit.CatID = catID
	visit.Outcome = outcome
	visit.Note = ""
	return visit, nil
}

// Blacklist marks a fingerprint to be dropped from every future import and
// hides the stored visit if one exists. The row stays in history; only its
// visibility changes. Blacklisting an already-blacklisted fingerprint is a
// no-op.
func (e *Engine) Blacklist(ctx context.Context, fingerprint, reason string) error {
	entry := model.BlacklistEntry{
		Fingerprint: fingerprint,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.AddBlacklistEntry(ctx, entry); err != nil {
		return err
	}
	return e.store.SetVisitHidden(ctx, fingerprint, true)
}

// BlacklistVisit blacklists by stored visit ID, resolving the fingerprint
// first.
func (e *Engine) BlacklistVisit(ctx context.Context, visitID int64, reason string) error {
	visit, err := e.store.GetVisitByID(ctx, visitID)
	if err != nil {
		return err
	}
	return e.Blacklist(ctx, visit.Fingerprint, reason)
}

// Restore removes a fingerprint from the blacklist and unhides its visit.
// Restoring a fingerprint that was never blacklisted is an error.
func (e *Engine) Restore(ctx context.Context, fingerprint string) error {
	if err := e.store.RemoveBlacklistEntry(ctx, fingerprint); err != nil {
		return err
	}
	if err := e.store.SetVisitHidden(ctx, fingerprint, false); err != nil {
		return err
	}
	slog.Info("restored fingerprint", "fingerprint", fingerprint)
	return nil
}
