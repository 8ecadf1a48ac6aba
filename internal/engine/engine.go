// Package engine orchestrates imports and corrections: parse, deduplicate,
// classify, persist atomically, snapshot.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/catfall/litterlog/internal/classify"
	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
	"github.com/catfall/litterlog/internal/storage"
	"github.com/catfall/litterlog/internal/whisker"
)

// weightLookAhead bounds how far forward a weightless detection event may
// borrow a weight reading from the same import.
const weightLookAhead = 7 * time.Minute

// Config holds the engine's tunables.
type Config struct {
	Classify classify.Config
	Retry    service.RetryOptions
}

// Engine is the import and correction pipeline. History is append-only:
// imports never mutate existing visits, and corrections hide rather than
// delete.
type Engine struct {
	store   service.Storage
	parser  *whisker.Parser
	backups *storage.BackupManager
	cfg     Config
}

// New creates an engine. backups may be nil, in which case imports skip
// the post-commit snapshot.
func New(store service.Storage, parser *whisker.Parser, backups *storage.BackupManager, cfg Config) *Engine {
	return &Engine{
		store:   store,
		parser:  parser,
		backups: backups,
		cfg:     cfg,
	}
}

// Import runs the full pipeline on one activity export: parse, filter
// duplicates and blacklisted fingerprints, classify, and persist the
// surviving visits plus the batch record in a single transaction. The
// database snapshot happens after commit; its failure is reported on the
// summary, never as an import failure.
func (e *Engine) Import(ctx context.Context, reader io.Reader, filename string) (*model.ImportSummary, error) {
	profiles, err := e.store.GetCats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cat profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, common.ErrNoProfiles
	}

	parsed, err := e.parser.ParseFile(ctx, reader)
	if err != nil {
		return nil, err
	}
	if len(parsed.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", common.ErrEmptyImport, filename)
	}

	seen, err := e.store.GetVisitFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known fingerprints: %w", err)
	}
	blacklisted, err := e.store.GetBlacklistFingerprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}

	batchID := uuid.New().String()
	summary := &model.ImportSummary{
		BatchID:   batchID,
		Malformed: parsed.Malformed,
	}

	resolutions := resolveWeights(parsed.Records, e.cfg.Classify.MinWeight)

	var visits []model.Visit
	for i, rec := range parsed.Records {
		fp := rec.Fingerprint()

		// Blacklist wins over dedup so re-imports report banned rows as
		// blacklisted, not as duplicates of their hidden visit.
		if _, banned := blacklisted[fp]; banned {
			summary.Blacklisted++
			continue
		}

		if _, dup := seen[fp]; dup {
			summary.Duplicates++
			continue
		}
		// Files can repeat rows; only the first occurrence survives.
		seen[fp] = struct{}{}

		visit := e.classifyRecord(rec, resolutions[i], profiles)
		visit.Fingerprint = fp
		visit.ImportID = batchID

		switch visit.Outcome {
		case model.OutcomeUnknown:
			summary.Unknown++
		case model.OutcomeError:
			summary.Errors++
		case model.OutcomeSystem:
			summary.System++
		}
		summary.Accepted++
		visits = append(visits, visit)
	}

	batch := &model.ImportBatch{
		ID:          batchID,
		Filename:    filename,
		CreatedAt:   time.Now().UTC(),
		Accepted:    summary.Accepted,
		Duplicates:  summary.Duplicates,
		Blacklisted: summary.Blacklisted,
		Unknown:     summary.Unknown,
		Errors:      summary.Errors,
		System:      summary.System,
		Malformed:   summary.Malformed,
	}

	commit := func() error {
		tx, err := e.store.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if len(visits) > 0 {
			if _, err := tx.SaveVisits(ctx, visits); err != nil {
				return err
			}
		}
		if err := tx.SaveImportBatch(ctx, batch); err != nil {
			return err
		}
		return tx.Commit()
	}
	if err := common.WithRetry(ctx, commit, e.cfg.Retry); err != nil {
		return nil, fmt.Errorf("import transaction failed: %w", err)
	}

	slog.Info("import committed",
		"batch_id", batchID,
		"file", filename,
		"accepted", summary.Accepted,
		"duplicates", summary.Duplicates,
		"blacklisted", summary.Blacklisted,
		"unknown", summary.Unknown,
		"errors", summary.Errors,
		"system", summary.System,
		"malformed", summary.Malformed)

	e.snapshot(ctx, batchID, filename, summary)

	return summary, nil
}

// snapshot backs up the database after a committed import. The import
// already succeeded, so failures here only mark the summary.
func (e *Engine) snapshot(ctx context.Context, batchID, filename string, summary *model.ImportSummary) {
	if e.backups == nil {
		return
	}

	info, err := e.backups.Create(ctx, batchID, "import "+filename)
	if err != nil {
		slog.Warn("backup snapshot failed", "batch_id", batchID, "error", err)
		summary.BackupErr = err
		return
	}

	path := e.backups.Path(info.ID)
	if err := e.store.SetImportBackupPath(ctx, batchID, path); err != nil {
		slog.Warn("failed to record backup path", "batch_id", batchID, "error", err)
		summary.BackupErr = err
		return
	}
	summary.BackupPath = path
}

// weightResolution is the outcome of look-ahead weight matching for one
// record.
type weightResolution struct {
	note       string
	weight     float64
	resolved   bool
	unresolved bool
}

// resolveWeights handles weightless detection events. The device sometimes
// logs "Cat Detected" without a reading, with the actual weight arriving on
// a follow-up row moments later. Such rows borrow the first weight reading
// within the next seven minutes; records is assumed sorted by timestamp.
func resolveWeights(records []model.RawRecord, minWeight float64) []weightResolution {
	resolutions := make([]weightResolution, len(records))

	for i, rec := range records {
		if !isDetectionEvent(rec.Activity) || rec.Weight >= minWeight {
			continue
		}

		deadline := rec.Timestamp.Add(weightLookAhead)
		found := false
		for j := i + 1; j < len(records); j++ {
			next := records[j]
			if next.Timestamp.After(deadline) {
				break
			}
			if next.Weight < minWeight {
				continue
			}
			delay := next.Timestamp.Sub(rec.Timestamp).Round(time.Minute)
			resolutions[i] = weightResolution{
				resolved: true,
				weight:   next.Weight,
				note:     fmt.Sprintf("Matched w/ %.1f lbs (+%dm)", next.Weight, int(delay.Minutes())),
			}
			found = true
			break
		}
		if !found {
			resolutions[i] = weightResolution{unresolved: true}
		}
	}

	return resolutions
}

func isDetectionEvent(activity string) bool {
	return strings.Contains(strings.ToLower(activity), "cat detected")
}

// classifyRecord turns one record into a visit, applying any borrowed
// weight first.
func (e *Engine) classifyRecord(rec model.RawRecord, res weightResolution, profiles []model.CatProfile) model.Visit {
	visit := model.Visit{
		RecordedAt: rec.Timestamp,
		Activity:   rec.Activity,
		Weight:     rec.Weight,
	}

	if res.unresolved {
		visit.Outcome = model.OutcomeUnknown
		visit.Note = "no weight found in 7m"
		return visit
	}
	if res.resolved {
		rec.Weight = res.weight
		visit.Weight = res.weight
	}

	result := classify.Classify(rec, profiles, e.cfg.Classify)
	visit.CatID = result.CatID
	visit.Outcome = result.Outcome
	visit.Note = result.Note
	if res.resolved {
		if visit.Note != "" {
			visit.Note = res.note + "; " + visit.Note
		} else {
			visit.Note = res.note
		}
	}
	return visit
}
