//go:build cgo

package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/storage"
	"github.com/steveyegge/calcsnap/internal/storage/doltutil"
)

func openEmbeddedTestDB(t *testing.T) *storage.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping embedded Dolt test in short mode")
	}

	db, err := storage.Open(context.Background(), &storage.Config{
		Backend:        storage.BackendDoltEmbedded,
		Path:           t.TempDir(),
		Database:       "calcsnap_test",
		CommitterName:  "test",
		CommitterEmail: "test@example.com",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietOptions() backfill.Options {
	return backfill.Options{Warnf: func(string, ...any) {}}
}

func TestEmbeddedMigrationBackfills(t *testing.T) {
	db := openEmbeddedTestDB(t)
	ctx := testContext(t)
	seedLegacy(t, ctx, db.DB)

	var results []*backfill.Result
	migrations := Registry(RegistryConfig{
		Options:    quietOptions(),
		OnBackfill: func(r *backfill.Result) { results = append(results, r) },
	})
	r, err := NewRunner(db, db.Dialect(), NewSQLLedger(db, db.Dialect()), migrations)
	require.NoError(t, err)
	r.Commit = func(ctx context.Context, msg string) error {
		_, err := doltutil.Commit(ctx, db, msg, "test", "test@example.com")
		return err
	}

	ran, err := r.Up(ctx)
	require.NoError(t, err)
	require.Len(t, ran, 1)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Parents)
	assert.Equal(t, 3, results[0].Written)

	snaps := readSnapshots(t, ctx, db.DB)
	require.Len(t, snaps, 3)

	p1 := snaps[parentNoDeductions]
	require.NotNil(t, p1)
	assert.Equal(t, "HØY", p1.Rate)
	assert.Equal(t, "2021-01-01", p1.Period.Start.String())
	assert.Equal(t, "2021-01-31", p1.Period.End.String())
	assert.Empty(t, p1.Deductions)

	p2 := snaps[parentTwoIncomes]
	require.NotNil(t, p2)
	require.Len(t, p2.Deductions, 2)
	assert.Equal(t, "Arbeidsinntekt", p2.Deductions[0].Type)
	assert.Equal(t, int64(500), p2.Deductions[0].Amount)
	assert.Equal(t, "Kapitalinntekt", p2.Deductions[1].Type)
	assert.Equal(t, int64(200), p2.Deductions[1].Amount)

	p3 := snaps[parentForeign]
	require.NotNil(t, p3)
	require.Len(t, p3.Deductions, 1)
	require.NotNil(t, p3.Deductions[0].ForeignIncome)
	assert.Equal(t, "USD", p3.Deductions[0].ForeignIncome.Currency)
	assert.Equal(t, 8.5, p3.Deductions[0].ForeignIncome.ExchangeRate)
	assert.Equal(t, p3.Period, p3.Deductions[0].Period)

	// A recorded version never runs again.
	ran, err = r.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)
	assert.Len(t, results, 1)

	applied, err := r.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "add_calculation_snapshot", applied[0].Name)
}

func TestEmbeddedBackfillIsRepeatable(t *testing.T) {
	db := openEmbeddedTestDB(t)
	ctx := testContext(t)
	seedLegacy(t, ctx, db.DB)

	_, err := backfill.Migrate(ctx, db, db.Dialect(), backfill.Layout{}, quietOptions())
	require.NoError(t, err)
	first := readSnapshots(t, ctx, db.DB)

	_, err = backfill.Migrate(ctx, db, db.Dialect(), backfill.Layout{}, quietOptions())
	require.NoError(t, err)
	second := readSnapshots(t, ctx, db.DB)

	for id, s := range first {
		require.NotNil(t, s)
		require.NotNil(t, second[id])
		assert.Equal(t, s.Structural(), second[id].Structural(), "parent %s", id)
		assert.NotEqual(t, s.ID, second[id].ID)
	}
}

func TestEmbeddedRecoversFromCrashedBackfill(t *testing.T) {
	db := openEmbeddedTestDB(t)
	ctx := testContext(t)
	seedLegacy(t, ctx, db.DB)

	store, err := backfill.NewSQLStore(db, db.Dialect(), backfill.Layout{})
	require.NoError(t, err)
	_, err = backfill.Run(ctx, store, &crashingSink{Sink: store, after: 1}, quietOptions())
	require.ErrorIs(t, err, backfill.ErrWrite)

	partial := readSnapshots(t, ctx, db.DB)
	written := 0
	for _, s := range partial {
		if s != nil {
			written++
		}
	}
	assert.Equal(t, 1, written)

	r, err := NewRunner(db, db.Dialect(), NewSQLLedger(db, db.Dialect()), Registry(RegistryConfig{Options: quietOptions()}))
	require.NoError(t, err)
	_, err = r.Up(ctx)
	require.NoError(t, err)

	for id, s := range readSnapshots(t, ctx, db.DB) {
		assert.NotNil(t, s, "parent %s has no snapshot after re-run", id)
	}
}

func TestEmbeddedSchemaOnly(t *testing.T) {
	db := openEmbeddedTestDB(t)
	ctx := testContext(t)
	seedLegacy(t, ctx, db.DB)

	opts := quietOptions()
	opts.SchemaOnly = true
	_, err := backfill.Migrate(ctx, db, db.Dialect(), backfill.Layout{}, opts)
	require.NoError(t, err)

	exists, err := db.Dialect().ColumnExists(ctx, db, "beregning", "beregning_snapshot")
	require.NoError(t, err)
	assert.True(t, exists)
	for id, s := range readSnapshots(t, ctx, db.DB) {
		assert.Nil(t, s, "schema-only pass wrote a snapshot for %s", id)
	}
}
