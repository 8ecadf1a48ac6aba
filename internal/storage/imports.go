package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/catfall/litterlog/internal/model"
)

// SaveImportBatch persists the summary row for one completed import.
func (s *SQLiteStorage) SaveImportBatch(ctx context.Context, batch *model.ImportBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateImportBatch(batch); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", wrapBusy(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveImportBatchTx(ctx, tx, batch); err != nil {
		return err
	}

	return wrapBusy(tx.Commit())
}

func (s *SQLiteStorage) saveImportBatchTx(ctx context.Context, tx *sql.Tx, batch *model.ImportBatch) error {
	createdAt := batch.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO import_batches (
			id, filename, created_at, accepted, duplicates,
			blacklisted, unknown, errors, system, malformed, backup_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		batch.ID,
		batch.Filename,
		createdAt,
		batch.Accepted,
		batch.Duplicates,
		batch.Blacklisted,
		batch.Unknown,
		batch.Errors,
		batch.System,
		batch.Malformed,
		batch.BackupPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import batch %s: %w", batch.ID, wrapBusy(err))
	}
	return nil
}

// SetImportBackupPath records the backup snapshot location after the
// import has committed. Backups run post-commit, so this update happens
// outside the import transaction.
func (s *SQLiteStorage) SetImportBackupPath(ctx context.Context, batchID, backupPath string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(batchID, "batchID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE import_batches SET backup_path = ? WHERE id = ?
	`, backupPath, batchID)
	if err != nil {
		return fmt.Errorf("failed to set backup path: %w", wrapBusy(err))
	}
	return nil
}

// GetImportBatches returns the most recent import batches, newest first.
// A limit of 0 returns all.
func (s *SQLiteStorage) GetImportBatches(ctx context.Context, limit int) ([]model.ImportBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, filename, created_at, accepted, duplicates,
		       blacklisted, unknown, errors, system, malformed, backup_path
		FROM import_batches
		ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		err := rows.Scan(
			&b.ID,
			&b.Filename,
			&b.CreatedAt,
			&b.Accepted,
			&b.Duplicates,
			&b.Blacklisted,
			&b.Unknown,
			&b.Errors,
			&b.System,
			&b.Malformed,
			&b.BackupPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", err)
		}
		batches = append(batches, b)
	}

	return batches, rows.Err()
}
