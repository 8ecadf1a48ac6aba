package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
)

func importSample(t *testing.T, eng *Engine) {
	t.Helper()
	_, err := eng.Import(context.Background(), strings.NewReader(sampleExport), "export.csv")
	require.NoError(t, err)
}

func findVisitByWeight(t *testing.T, visits []model.Visit, weight float64) *model.Visit {
	t.Helper()
	for i := range visits {
		if visits[i].Weight == weight {
			return &visits[i]
		}
	}
	t.Fatalf("no visit with weight %.1f", weight)
	return nil
}

func TestReassign(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	_, mochi := addProfiles(t, store)
	importSample(t, eng)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	unknown := findVisitByWeight(t, visits, 5.1)
	require.Equal(t, model.OutcomeUnknown, unknown.Outcome)

	corrected, err := eng.Reassign(ctx, unknown.ID, &mochi.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAssigned, corrected.Outcome)
	require.NotNil(t, corrected.CatID)
	assert.Equal(t, mochi.ID, *corrected.CatID)
	assert.Empty(t, corrected.Note)

	// Reassigning to the same cat again changes nothing
	again, err := eng.Reassign(ctx, unknown.ID, &mochi.ID)
	require.NoError(t, err)
	assert.Equal(t, mochi.ID, *again.CatID)
}

func TestReassignClears(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	addProfiles(t, store)
	importSample(t, eng)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	assigned := findVisitByWeight(t, visits, 8.2)
	require.Equal(t, model.OutcomeAssigned, assigned.Outcome)

	cleared, err := eng.Reassign(ctx, assigned.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnknown, cleared.Outcome)
	assert.Nil(t, cleared.CatID)
}

func TestReassignErrors(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	biscuit, _ := addProfiles(t, store)
	importSample(t, eng)

	_, err := eng.Reassign(ctx, 99999, &biscuit.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	missing := int64(99999)
	_, err = eng.Reassign(ctx, visits[0].ID, &missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReassignSurvivesReimport(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	_, mochi := addProfiles(t, store)
	importSample(t, eng)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	unknown := findVisitByWeight(t, visits, 5.1)

	_, err = eng.Reassign(ctx, unknown.ID, &mochi.ID)
	require.NoError(t, err)

	importSample(t, eng)

	after, err := store.GetVisitByID(ctx, unknown.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAssigned, after.Outcome)
	require.NotNil(t, after.CatID)
	assert.Equal(t, mochi.ID, *after.CatID)
}

func TestBlacklistVisit(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	addProfiles(t, store)
	importSample(t, eng)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	target := findVisitByWeight(t, visits, 5.1)

	require.NoError(t, eng.BlacklistVisit(ctx, target.ID, "neighbor's cat"))

	// Hidden from default queries, still present with IncludeHidden
	visible, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 4)
	all, err := store.GetVisits(ctx, service.VisitFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	// Future imports drop the fingerprint
	summary, err := eng.Import(ctx, strings.NewReader(sampleExport), "export.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Blacklisted)
	assert.Equal(t, 4, summary.Duplicates)
	assert.Equal(t, 0, summary.Accepted)

	// Blacklisting the same visit twice is a no-op
	require.NoError(t, eng.BlacklistVisit(ctx, target.ID, "again"))
}

func TestRestore(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	addProfiles(t, store)
	importSample(t, eng)

	visits, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	target := findVisitByWeight(t, visits, 5.1)
	require.NoError(t, eng.BlacklistVisit(ctx, target.ID, "mistake"))

	require.NoError(t, eng.Restore(ctx, target.Fingerprint))

	visible, err := store.GetVisits(ctx, service.VisitFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 5, "visit visible again after restore")

	entries, err := store.GetBlacklist(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = eng.Restore(ctx, target.Fingerprint)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
