package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"

	"github.com/mattn/go-sqlite3"
)

// CreateCat creates a new cat profile.
func (s *SQLiteStorage) CreateCat(ctx context.Context, name string, targetWeight float64, birthdate *time.Time) (*model.CatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateProfileInput(name, targetWeight); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cats (name, target_weight, birthdate, created_at)
		VALUES (?, ?, ?, ?)
	`, name, targetWeight, birthdate, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: cat %q", common.ErrDuplicateEntry, name)
		}
		return nil, fmt.Errorf("failed to create cat: %w", wrapBusy(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get cat ID: %w", err)
	}

	slog.Info("created cat profile", "name", name, "target_weight", targetWeight)

	return &model.CatProfile{
		ID:           id,
		Name:         name,
		TargetWeight: targetWeight,
		Birthdate:    birthdate,
		CreatedAt:    now,
	}, nil
}

// GetCats returns all cat profiles ordered by ID.
func (s *SQLiteStorage) GetCats(ctx context.Context) ([]model.CatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, target_weight, birthdate, created_at
		FROM cats
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cats []model.CatProfile
	for rows.Next() {
		cat, err := scanCat(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *cat)
	}

	return cats, rows.Err()
}

// GetCatByID retrieves a single cat profile by ID.
func (s *SQLiteStorage) GetCatByID(ctx context.Context, id int64) (*model.CatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCat(ctx, `WHERE id = ?`, id)
}

// GetCatByName retrieves a single cat profile by name.
func (s *SQLiteStorage) GetCatByName(ctx context.Context, name string) (*model.CatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCat(ctx, `WHERE name = ?`, name)
}

func (s *SQLiteStorage) getCat(ctx context.Context, where string, arg any) (*model.CatProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, target_weight, birthdate, created_at
		FROM cats `+where, arg)

	cat, err := scanCat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cat: %w", err)
	}
	return cat, nil
}

// DeleteCat removes a cat profile. Visit history referencing the cat is
// retained untouched.
func (s *SQLiteStorage) DeleteCat(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM cats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cat: %w", wrapBusy(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	slog.Info("deleted cat profile, history retained", "cat_id", id)
	return nil
}

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanCat(row scannable) (*model.CatProfile, error) {
	var cat model.CatProfile
	var birthdate sql.NullTime
	if err := row.Scan(&cat.ID, &cat.Name, &cat.TargetWeight, &birthdate, &cat.CreatedAt); err != nil {
		return nil, err
	}
	if birthdate.Valid {
		cat.Birthdate = &birthdate.Time
	}
	return &cat, nil
}
