package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/calcsnap/internal/storage"
)

// LedgerTable records applied migration versions.
const LedgerTable = "calcsnap_migrations"

// Record is one applied migration.
type Record struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

// Ledger persists which versions have run.
type Ledger interface {
	// Ensure creates the ledger table if needed.
	Ensure(ctx context.Context) error
	// Applied lists recorded versions in ascending order. A missing ledger
	// table means nothing has been applied.
	Applied(ctx context.Context) ([]Record, error)
	// Record stores rec through q, which may be a transaction.
	Record(ctx context.Context, q storage.Querier, rec Record) error
}

type sqlLedger struct {
	q       storage.Querier
	dialect storage.Dialect
}

// NewSQLLedger returns a Ledger stored in LedgerTable.
func NewSQLLedger(q storage.Querier, dialect storage.Dialect) Ledger {
	return &sqlLedger{q: q, dialect: dialect}
}

func (l *sqlLedger) Ensure(ctx context.Context) error {
	// #nosec G201 -- constant table name
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version INT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`, l.dialect.Quote(LedgerTable))
	if _, err := l.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s: %w", LedgerTable, err)
	}
	return nil
}

func (l *sqlLedger) Applied(ctx context.Context) (_ []Record, err error) {
	exists, err := l.dialect.TableExists(ctx, l.q, LedgerTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	// #nosec G201 -- constant table name
	rows, err := l.q.QueryContext(ctx, fmt.Sprintf(
		"SELECT version, name, applied_at FROM %s ORDER BY version", l.dialect.Quote(LedgerTable)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", LedgerTable, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Version, &r.Name, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", LedgerTable, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *sqlLedger) Record(ctx context.Context, q storage.Querier, rec Record) error {
	d := l.dialect
	// #nosec G201 -- constant table name
	stmt := fmt.Sprintf("INSERT INTO %s (version, name, applied_at) VALUES (%s, %s, %s)",
		d.Quote(LedgerTable), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))
	if _, err := q.ExecContext(ctx, stmt, rec.Version, rec.Name, rec.AppliedAt.UTC()); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", rec.Version, err)
	}
	return nil
}
