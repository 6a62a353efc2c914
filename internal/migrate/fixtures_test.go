package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/snapshot"
)

const (
	parentNoDeductions = "0b7e3f0e-2f6d-4c1a-9d55-6a1d1c000001"
	parentTwoIncomes   = "0b7e3f0e-2f6d-4c1a-9d55-6a1d1c000002"
	parentForeign      = "0b7e3f0e-2f6d-4c1a-9d55-6a1d1c000003"
)

var legacySchema = []string{
	`CREATE TABLE beregning (
		id VARCHAR(36) PRIMARY KEY,
		fom DATE NOT NULL,
		tom DATE NOT NULL,
		sats VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE fradrag (
		id VARCHAR(36) PRIMARY KEY,
		beregning_id VARCHAR(36) NOT NULL,
		fradragstype VARCHAR(64) NOT NULL,
		belop INT NOT NULL,
		utenlandsk_inntekt JSON NULL
	)`,
	`INSERT INTO beregning (id, fom, tom, sats) VALUES
		('` + parentNoDeductions + `', '2021-01-01', '2021-01-31', 'HØY'),
		('` + parentTwoIncomes + `', '2021-01-01', '2021-01-31', 'HØY'),
		('` + parentForeign + `', '2021-05-01', '2022-04-30', 'ORDINÆR')`,
	`INSERT INTO fradrag (id, beregning_id, fradragstype, belop, utenlandsk_inntekt) VALUES
		('f0000000-0000-4000-8000-000000000001', '` + parentTwoIncomes + `', 'Arbeidsinntekt', 500, NULL),
		('f0000000-0000-4000-8000-000000000002', '` + parentTwoIncomes + `', 'Kapitalinntekt', 200, NULL),
		('f0000000-0000-4000-8000-000000000003', '` + parentForeign + `', 'Arbeidsinntekt', 8500,
			'{"amountInForeignCurrency": 1000, "currency": "USD", "exchangeRate": 8.5, "valid": true}')`,
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func seedLegacy(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	for _, stmt := range legacySchema {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, "seeding: %s", stmt)
	}
}

func readSnapshots(t *testing.T, ctx context.Context, db *sql.DB) map[string]*snapshot.Snapshot {
	t.Helper()
	rows, err := db.QueryContext(ctx, "SELECT id, CAST(beregning_snapshot AS CHAR) FROM beregning ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[string]*snapshot.Snapshot)
	for rows.Next() {
		var (
			id  string
			doc sql.NullString
		)
		require.NoError(t, rows.Scan(&id, &doc))
		if !doc.Valid {
			out[id] = nil
			continue
		}
		var s snapshot.Snapshot
		require.NoError(t, json.Unmarshal([]byte(doc.String), &s), "snapshot of %s", id)
		out[id] = &s
	}
	require.NoError(t, rows.Err())
	return out
}

// crashingSink fails once `after` snapshots have been written.
type crashingSink struct {
	backfill.Sink
	after   int
	written int
}

func (c *crashingSink) WriteSnapshot(ctx context.Context, parentID string, doc []byte) error {
	if c.written >= c.after {
		return fmt.Errorf("%w: simulated crash", backfill.ErrWrite)
	}
	c.written++
	return c.Sink.WriteSnapshot(ctx, parentID, doc)
}
