package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
)

// SaveVisits inserts visits into history and returns how many were
// actually added. Rows whose fingerprint already exists are silently
// skipped: the UNIQUE constraint is the authoritative duplicate guard, so
// overlapping imports can never double-insert or overwrite a correction.
func (s *SQLiteStorage) SaveVisits(ctx context.Context, visits []model.Visit) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateVisits(visits); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", wrapBusy(err))
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveVisitsTx(ctx, tx, visits)
	if err != nil {
		return 0, err
	}

	return inserted, wrapBusy(tx.Commit())
}

func (s *SQLiteStorage) saveVisitsTx(ctx context.Context, tx *sql.Tx, visits []model.Visit) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO visits (
			fingerprint, recorded_at, weight, activity,
			cat_id, outcome, note, import_id, hidden
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, v := range visits {
		res, err := stmt.ExecContext(ctx,
			v.Fingerprint,
			v.RecordedAt,
			v.Weight,
			v.Activity,
			v.CatID,
			string(v.Outcome),
			v.Note,
			v.ImportID,
			v.Hidden,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert visit %s: %w", v.Fingerprint, wrapBusy(err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check insert result: %w", err)
		}
		inserted += int(affected)
	}

	return inserted, nil
}

// GetVisits retrieves visits matching the filter, newest first.
func (s *SQLiteStorage) GetVisits(ctx context.Context, filter service.VisitFilter) ([]model.Visit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, fmt.Errorf("%w: %v is before %v", ErrInvalidDateRange, filter.End, filter.Start)
	}

	var conditions []string
	var args []any

	if !filter.IncludeHidden {
		conditions = append(conditions, "hidden = 0")
	}
	if filter.CatID != nil {
		conditions = append(conditions, "cat_id = ?")
		args = append(args, *filter.CatID)
	}
	if filter.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*filter.Outcome))
	}
	if filter.Start != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		conditions = append(conditions, "recorded_at <= ?")
		args = append(args, *filter.End)
	}

	query := `
		SELECT id, fingerprint, recorded_at, weight, activity,
		       cat_id, outcome, note, import_id, hidden, created_at
		FROM visits`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY recorded_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanVisits(rows)
}

// GetVisitByID retrieves a single visit by ID.
func (s *SQLiteStorage) GetVisitByID(ctx context.Context, id int64) (*model.Visit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, recorded_at, weight, activity,
		       cat_id, outcome, note, import_id, hidden, created_at
		FROM visits
		WHERE id = ?
	`, id)

	visit, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// GetVisitsForReview returns visits needing manual attention: unknown or
// error outcomes plus any flagged assignment, excluding machine events and
// hidden rows.
func (s *SQLiteStorage) GetVisitsForReview(ctx context.Context) ([]model.Visit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, recorded_at, weight, activity,
		       cat_id, outcome, note, import_id, hidden, created_at
		FROM visits
		WHERE hidden = 0
		  AND outcome != ?
		  AND (outcome IN (?, ?) OR note != '')
		ORDER BY recorded_at DESC
	`, string(model.OutcomeSystem), string(model.OutcomeUnknown), string(model.OutcomeError))
	if err != nil {
		return nil, fmt.Errorf("failed to query review visits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanVisits(rows)
}

// GetVisitFingerprints returns the set of all fingerprints in history,
// including hidden visits. Used as the fast-path duplicate filter during
// imports.
func (s *SQLiteStorage) GetVisitFingerprints(ctx context.Context) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM visits`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fingerprints := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints[fp] = struct{}{}
	}

	return fingerprints, rows.Err()
}

// UpdateVisitAssignment mutates a stored visit's cat, outcome and note.
// Used by corrections; imports never touch existing rows.
func (s *SQLiteStorage) UpdateVisitAssignment(ctx context.Context, visitID int64, catID *int64, outcome model.Outcome, note string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if !model.ValidOutcome(string(outcome)) {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidVisit, outcome)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE visits SET cat_id = ?, outcome = ?, note = ? WHERE id = ?
	`, catID, string(outcome), note, visitID)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", wrapBusy(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// SetVisitHidden hides or unhides the visit with the given fingerprint.
// Hiding a fingerprint that has no stored visit is not an error: blacklist
// entries may predate any import of the record.
func (s *SQLiteStorage) SetVisitHidden(ctx context.Context, fingerprint string, hidden bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE visits SET hidden = ? WHERE fingerprint = ?
	`, hidden, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to set visit hidden: %w", wrapBusy(err))
	}
	return nil
}

func scanVisits(rows *sql.Rows) ([]model.Visit, error) {
	var visits []model.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *visit)
	}
	return visits, rows.Err()
}

func scanVisit(row scannable) (*model.Visit, error) {
	var v model.Visit
	var catID sql.NullInt64
	var importID sql.NullString
	var outcome string
	var recordedAt, createdAt time.Time

	err := row.Scan(
		&v.ID,
		&v.Fingerprint,
		&recordedAt,
		&v.Weight,
		&v.Activity,
		&catID,
		&outcome,
		&v.Note,
		&importID,
		&v.Hidden,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	v.RecordedAt = recordedAt
	v.CreatedAt = createdAt
	v.Outcome = model.Outcome(outcome)
	if catID.Valid {
		v.CatID = &catID.Int64
	}
	if importID.Valid {
		v.ImportID = importID.String
	}
	return &v, nil
}
