package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"
)

// AddBlacklistEntry records a fingerprint to drop on all future imports.
// Adding an already-blacklisted fingerprint is a no-op, not an error.
func (s *SQLiteStorage) AddBlacklistEntry(ctx context.Context, entry model.BlacklistEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.Fingerprint, "fingerprint"); err != nil {
		return err
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO blacklist (fingerprint, reason, created_at)
		VALUES (?, ?, ?)
	`, entry.Fingerprint, entry.Reason, createdAt)
	if err != nil {
		return fmt.Errorf("failed to add blacklist entry: %w", wrapBusy(err))
	}

	slog.Info("blacklisted fingerprint", "fingerprint", entry.Fingerprint, "reason", entry.Reason)
	return nil
}

// RemoveBlacklistEntry deletes a blacklist entry.
func (s *SQLiteStorage) RemoveBlacklistEntry(ctx context.Context, fingerprint string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(fingerprint, "fingerprint"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to remove blacklist entry: %w", wrapBusy(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// GetBlacklist returns all blacklist entries, newest first.
func (s *SQLiteStorage) GetBlacklist(ctx context.Context) ([]model.BlacklistEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, reason, created_at
		FROM blacklist
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.BlacklistEntry
	for rows.Next() {
		var e model.BlacklistEntry
		if err := rows.Scan(&e.Fingerprint, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetBlacklistFingerprints returns the blacklisted fingerprints as a set
// for import-time filtering.
func (s *SQLiteStorage) GetBlacklistFingerprints(ctx context.Context) (map[string]struct{}, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM blacklist`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist fingerprints: %w", err)
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
