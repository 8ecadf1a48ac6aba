package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupManager handles database backup snapshots. One snapshot is taken
// after every successful import, named for the import batch.
type BackupManager struct {
	db         *sql.DB
	dbPath     string
	backupsDir string
}

// BackupMetadata is the sidecar written next to each snapshot.
type BackupMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
}

// BackupInfo represents information about a snapshot for listing.
type BackupInfo struct {
	CreatedAt     time.Time
	ID            string
	Description   string
	FileSize      int64
	Visits        int
	Cats          int
	SchemaVersion int
}

// Common errors.
var (
	ErrBackupNotFound = errors.New("backup not found")
	ErrBackupExists   = errors.New("backup already exists")
)

// NewBackupManager creates a new backup manager.
func NewBackupManager(db *sql.DB, dbPath string) (*BackupManager, error) {
	backupsDir := filepath.Join(filepath.Dir(dbPath), "backups")

	if err := os.MkdirAll(backupsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	return &BackupManager{
		db:         db,
		dbPath:     dbPath,
		backupsDir: backupsDir,
	}, nil
}

// Create takes a snapshot of the database with the given tag and
// description, returning info about the new snapshot.
func (bm *BackupManager) Create(ctx context.Context, tag, description string) (*BackupInfo, error) {
	if tag == "" {
		tag = fmt.Sprintf("backup-%s", time.Now().Format("2006-01-02-150405"))
	}

	// No path traversal through tags
	if strings.ContainsAny(tag, `/\`) || strings.Contains(tag, "..") {
		return nil, errors.New("invalid backup tag: cannot contain path separators")
	}

	backupPath := filepath.Join(bm.backupsDir, tag+".db")
	if _, err := os.Stat(backupPath); err == nil {
		return nil, ErrBackupExists
	}

	var schemaVersion int
	if err := bm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	rowCounts := bm.collectRowCounts(ctx)

	if err := bm.snapshotDatabase(ctx, backupPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	fileInfo, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	metadata := BackupMetadata{
		ID:            tag,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		FileSize:      fileInfo.Size(),
		RowCounts:     rowCounts,
		SchemaVersion: schemaVersion,
	}

	metadataPath := filepath.Join(bm.backupsDir, tag+".meta.json")
	if err := bm.saveMetadata(metadataPath, metadata); err != nil {
		if rmErr := os.Remove(backupPath); rmErr != nil {
			slog.Error("failed to remove backup file after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	slog.Info("created backup snapshot", "id", tag, "size_bytes", metadata.FileSize)

	return &BackupInfo{
		ID:            metadata.ID,
		CreatedAt:     metadata.CreatedAt,
		Description:   metadata.Description,
		FileSize:      metadata.FileSize,
		Visits:        rowCounts["visits"],
		Cats:          rowCounts["cats"],
		SchemaVersion: metadata.SchemaVersion,
	}, nil
}

// Path returns the snapshot file path for a backup ID.
func (bm *BackupManager) Path(id string) string {
	return filepath.Join(bm.backupsDir, id+".db")
}

// List returns all snapshots, newest first.
func (bm *BackupManager) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.backupsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		metadata, err := bm.loadMetadata(filepath.Join(bm.backupsDir, entry.Name()))
		if err != nil {
			// Skip corrupted metadata files
			continue
		}

		backups = append(backups, BackupInfo{
			ID:            metadata.ID,
			CreatedAt:     metadata.CreatedAt,
			Description:   metadata.Description,
			FileSize:      metadata.FileSize,
			Visits:        metadata.RowCounts["visits"],
			Cats:          metadata.RowCounts["cats"],
			SchemaVersion: metadata.SchemaVersion,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Delete removes a snapshot and its metadata.
func (bm *BackupManager) Delete(_ context.Context, id string) error {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return errors.New("invalid backup ID: cannot contain path separators")
	}

	backupPath := filepath.Join(bm.backupsDir, id+".db")
	if _, err := os.Stat(backupPath); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}

	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("failed to remove backup file: %w", err)
	}

	if err := os.Remove(filepath.Join(bm.backupsDir, id+".meta.json")); err != nil {
		// Non-fatal: metadata might not exist
		slog.Debug("failed to remove metadata file", "error", err, "id", id)
	}

	return nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were removed.
func (bm *BackupManager) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, errors.New("must keep at least one backup")
	}

	backups, err := bm.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, backup := range backups[keep:] {
		if err := bm.Delete(ctx, backup.ID); err != nil {
			slog.Warn("failed to prune backup", "id", backup.ID, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

func (bm *BackupManager) collectRowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)

	tableQueries := map[string]string{
		"visits":         "SELECT COUNT(*) FROM visits",
		"cats":           "SELECT COUNT(*) FROM cats",
		"blacklist":      "SELECT COUNT(*) FROM blacklist",
		"import_batches": "SELECT COUNT(*) FROM import_batches",
	}

	for table, query := range tableQueries {
		var count int
		if err := bm.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			counts[table] = 0
			continue
		}
		counts[table] = count
	}

	return counts
}

func (bm *BackupManager) snapshotDatabase(ctx context.Context, destPath string) error {
	// Flush the WAL so the snapshot sees every committed write
	if _, err := bm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	// VACUUM INTO produces an atomic, compacted copy (SQLite 3.27+)
	if strings.ContainsAny(destPath, `'";`) || strings.Contains(destPath, "..") {
		return fmt.Errorf("invalid destination path")
	}
	query := fmt.Sprintf("VACUUM INTO '%s'", destPath)
	if _, err := bm.db.ExecContext(ctx, query); err != nil {
		// Fall back to a plain file copy on older SQLite builds
		slog.Debug("VACUUM INTO failed, falling back to file copy", "error", err)
		return bm.copyFile(bm.dbPath, destPath)
	}

	return nil
}

func (bm *BackupManager) copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	// Write to a temp file then rename so a crash never leaves a partial
	// snapshot that looks valid.
	tmpDst := dst + ".tmp"
	destination, err := os.Create(tmpDst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmpDst)
		return err
	}

	if err := destination.Close(); err != nil {
		_ = os.Remove(tmpDst)
		return err
	}

	return os.Rename(tmpDst, dst)
}

func (bm *BackupManager) saveMetadata(path string, metadata BackupMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (bm *BackupManager) loadMetadata(path string) (*BackupMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var metadata BackupMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}
