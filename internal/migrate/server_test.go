package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/storage"
)

const doltServerImage = "dolthub/dolt-sql-server:1.32.4"

func TestDoltServerMigration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := testContext(t)
	ctr, err := dolt.Run(ctx, doltServerImage,
		dolt.WithDatabase("calcsnap"),
		dolt.WithUsername("calcsnap"),
		dolt.WithPassword("calcsnap"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := storage.Open(ctx, &storage.Config{Backend: storage.BackendDoltServer, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	seedLegacy(t, ctx, db.DB)

	r, err := NewRunner(db, db.Dialect(), NewSQLLedger(db, db.Dialect()), Registry(RegistryConfig{
		Options: backfill.Options{Warnf: func(string, ...any) {}},
	}))
	require.NoError(t, err)

	ran, err := r.Up(ctx)
	require.NoError(t, err)
	require.Len(t, ran, 1)

	snaps := readSnapshots(t, ctx, db.DB)
	require.Len(t, snaps, 3)
	for id, s := range snaps {
		require.NotNil(t, s, "parent %s", id)
	}
	assert.Len(t, snaps[parentTwoIncomes].Deductions, 2)
	assert.Equal(t, "ORDINÆR", snaps[parentForeign].Rate)

	pending, err := r.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
