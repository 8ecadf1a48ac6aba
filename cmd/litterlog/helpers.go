package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/catfall/litterlog/internal/classify"
	"github.com/catfall/litterlog/internal/config"
	"github.com/catfall/litterlog/internal/engine"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
	"github.com/catfall/litterlog/internal/storage"
	"github.com/catfall/litterlog/internal/whisker"
)

// initStorage opens the database with proper path expansion and runs
// pending migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/litterlog/litterlog.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// classifyConfig builds classification thresholds from configuration,
// falling back to the defaults for anything unset.
func classifyConfig() classify.Config {
	cfg := classify.DefaultConfig()
	if viper.IsSet("import.tolerance") {
		cfg.Tolerance = viper.GetFloat64("import.tolerance")
	}
	if viper.IsSet("import.min_weight") {
		cfg.MinWeight = viper.GetFloat64("import.min_weight")
	}
	if viper.IsSet("import.max_weight") {
		cfg.MaxWeight = viper.GetFloat64("import.max_weight")
	}
	return cfg
}

// newEngine wires up the import pipeline from configuration.
func newEngine(store *storage.SQLiteStorage) (*engine.Engine, error) {
	parser := whisker.NewParser(viper.GetInt("import.timezone_offset_hours"))
	parser.ReferenceYear = viper.GetInt("import.reference_year")

	backups, err := store.NewBackupManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create backup manager: %w", err)
	}

	return engine.New(store, parser, backups, engine.Config{
		Classify: classifyConfig(),
	}), nil
}

// resolveCat accepts either a cat name or a numeric ID.
func resolveCat(ctx context.Context, store service.Storage, nameOrID string) (*model.CatProfile, error) {
	if id, err := strconv.ParseInt(nameOrID, 10, 64); err == nil {
		return store.GetCatByID(ctx, id)
	}
	return store.GetCatByName(ctx, nameOrID)
}

// parseDate accepts a bare date or a full timestamp.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want 2006-01-02)", value)
}

func formatCat(visit *model.Visit, cats map[int64]string) string {
	if visit.CatID == nil {
		return "-"
	}
	if name, ok := cats[*visit.CatID]; ok {
		return name
	}
	return fmt.Sprintf("cat %d", *visit.CatID)
}

func catNames(ctx context.Context, store service.Storage) (map[int64]string, error) {
	cats, err := store.GetCats(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}
