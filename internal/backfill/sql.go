package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/calcsnap/internal/calculation"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/storage"
)

// Source yields the flat legacy join.
type Source interface {
	ReadRows(ctx context.Context) ([]Row, error)
}

// Sink receives the schema change and the serialized snapshots.
type Sink interface {
	EnsureSnapshotColumn(ctx context.Context) error
	WriteSnapshot(ctx context.Context, parentID string, doc []byte) error
}

// SQLStore is the Source and Sink backed by the legacy tables.
type SQLStore struct {
	q       storage.Querier
	dialect storage.Dialect
	layout  Layout
	warnf   func(format string, args ...any)
}

// NewSQLStore validates layout and binds it to q. Empty layout fields take
// their DefaultLayout value.
func NewSQLStore(q storage.Querier, dialect storage.Dialect, layout Layout) (*SQLStore, error) {
	layout = layout.withDefaults()
	for _, ident := range []string{layout.CalculationTable, layout.DeductionTable, layout.SnapshotColumn} {
		if err := storage.ValidateIdentifier(ident); err != nil {
			return nil, err
		}
	}
	return &SQLStore{q: q, dialect: dialect, layout: layout, warnf: debug.Warnf}, nil
}

// Layout returns the validated layout.
func (s *SQLStore) Layout() Layout {
	return s.layout
}

// EnsureSnapshotColumn adds the nullable JSON column if it is missing.
func (s *SQLStore) EnsureSnapshotColumn(ctx context.Context) error {
	if err := s.dialect.AddNullableJSONColumn(ctx, s.q, s.layout.CalculationTable, s.layout.SnapshotColumn); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// selectQuery orders by every selected deduction column, so rows that share
// type and amount still come back in the same order on every run.
func (s *SQLStore) selectQuery() string {
	d := s.dialect
	foreignIncome := d.AsText("d." + d.Quote("utenlandsk_inntekt"))
	return fmt.Sprintf(`SELECT c.%s, c.%s, c.%s, c.%s, d.%s, d.%s, %s
		FROM %s c
		LEFT JOIN %s d ON d.%s = c.%s
		ORDER BY c.%s, d.%s, d.%s, %s`,
		d.Quote("id"), d.Quote("fom"), d.Quote("tom"), d.Quote("sats"),
		d.Quote("fradragstype"), d.Quote("belop"), foreignIncome,
		d.Quote(s.layout.CalculationTable),
		d.Quote(s.layout.DeductionTable), d.Quote("beregning_id"), d.Quote("id"),
		d.Quote("id"), d.Quote("fradragstype"), d.Quote("belop"), foreignIncome)
}

func (s *SQLStore) updateStatement() string {
	d := s.dialect
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		d.Quote(s.layout.CalculationTable), d.Quote(s.layout.SnapshotColumn), d.Placeholder(1),
		d.Quote("id"), d.Placeholder(2))
}

// ReadRows runs the legacy join and materializes every row.
func (s *SQLStore) ReadRows(ctx context.Context) (_ []Row, err error) {
	// #nosec G201 -- identifiers validated in NewSQLStore
	rows, err := s.q.QueryContext(ctx, s.selectQuery())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close rows: %v", ErrQuery, cerr)
		}
	}()

	var out []Row
	for rows.Next() {
		var (
			r         Row
			fom, tom  any
			typ       sql.NullString
			amount    sql.NullInt64
			foreignIn sql.NullString
		)
		if err := rows.Scan(&r.ParentID, &fom, &tom, &r.Rate, &typ, &amount, &foreignIn); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %v", ErrQuery, err)
		}
		if r.PeriodStart, err = scanDate(fom); err != nil {
			return nil, fmt.Errorf("%w: calculation %s start: %v", ErrQuery, r.ParentID, err)
		}
		if r.PeriodEnd, err = scanDate(tom); err != nil {
			return nil, fmt.Errorf("%w: calculation %s end: %v", ErrQuery, r.ParentID, err)
		}
		if typ.Valid {
			t := typ.String
			r.DeductionType = &t
			r.Amount = amount.Int64
		}
		if foreignIn.Valid {
			p := foreignIn.String
			r.ForeignIncome = &p
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

func scanDate(v any) (calculation.Date, error) {
	switch x := v.(type) {
	case time.Time:
		return calculation.DateOf(x), nil
	case []byte:
		return calculation.ParseDate(string(x))
	case string:
		return calculation.ParseDate(x)
	case nil:
		return calculation.Date{}, fmt.Errorf("date is NULL")
	default:
		return calculation.Date{}, fmt.Errorf("unsupported date value %T", v)
	}
}

// WriteSnapshot overwrites the snapshot column of one parent. A parent that
// no longer exists is reported through warnf and skipped.
func (s *SQLStore) WriteSnapshot(ctx context.Context, parentID string, doc []byte) error {
	if _, err := uuid.Parse(parentID); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, parentID, err)
	}

	// The document is bound as a string: MySQL refuses JSON built from a
	// binary-charset parameter.
	// #nosec G201 -- identifiers validated in NewSQLStore
	res, err := s.q.ExecContext(ctx, s.updateStatement(), string(doc), parentID)
	if err != nil {
		return fmt.Errorf("%w: calculation %s: %v", ErrWrite, parentID, err)
	}
	n, err := res.RowsAffected()
	switch {
	case err != nil:
		s.warnf("calculation %s: cannot confirm snapshot was written: %v\n", parentID, err)
	case n == 0:
		s.warnf("calculation %s no longer exists, snapshot not written\n", parentID)
	}
	return nil
}
