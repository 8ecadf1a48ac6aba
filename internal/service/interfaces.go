// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/catfall/litterlog/internal/model"
)

// VisitFilter defines filtering options for visit queries.
type VisitFilter struct {
	CatID         *int64
	Outcome       *model.Outcome
	Start         *time.Time
	End           *time.Time
	IncludeHidden bool
	Limit         int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Cat profile operations
	CreateCat(ctx context.Context, name string, targetWeight float64, birthdate *time.Time) (*model.CatProfile, error)
	GetCats(ctx context.Context) ([]model.CatProfile, error)
	GetCatByID(ctx context.Context, id int64) (*model.CatProfile, error)
	GetCatByName(ctx context.Context, name string) (*model.CatProfile, error)
	DeleteCat(ctx context.Context, id int64) error

	// Visit operations
	SaveVisits(ctx context.Context, visits []model.Visit) (int, error)
	GetVisits(ctx context.Context, filter VisitFilter) ([]model.Visit, error)
	GetVisitByID(ctx context.Context, id int64) (*model.Visit, error)
	GetVisitsForReview(ctx context.Context) ([]model.Visit, error)
	GetVisitFingerprints(ctx context.Context) (map[string]struct{}, error)
	UpdateVisitAssignment(ctx context.Context, visitID int64, catID *int64, outcome model.Outcome, note string) error
	SetVisitHidden(ctx context.Context, fingerprint string, hidden bool) error

	// Blacklist operations
	AddBlacklistEntry(ctx context.Context, entry model.BlacklistEntry) error
	RemoveBlacklistEntry(ctx context.Context, fingerprint string) error
	GetBlacklist(ctx context.Context) ([]model.BlacklistEntry, error)
	GetBlacklistFingerprints(ctx context.Context) (map[string]struct{}, error)

	// Import batch operations
	SaveImportBatch(ctx context.Context, batch *model.ImportBatch) error
	SetImportBackupPath(ctx context.Context, batchID, backupPath string) error
	GetImportBatches(ctx context.Context, limit int) ([]model.ImportBatch, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction. All writes performed
// through it commit or roll back as one unit.
type Transaction interface {
	Commit() error
	Rollback() error

	SaveVisits(ctx context.Context, visits []model.Visit) (int, error)
	SaveImportBatch(ctx context.Context, batch *model.ImportBatch) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
