// Package migrate runs versioned, run-once migrations against the calcsnap
// database and records each applied version in a ledger table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/storage"
)

// Migration is one registered schema change.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, q storage.Querier, dialect storage.Dialect) error
}

// DB is the handle a Runner drives. *sql.DB and *storage.DB satisfy it.
type DB interface {
	storage.Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Status pairs a registered migration with its ledger record, if any.
type Status struct {
	Version int     `json:"version"`
	Name    string  `json:"name"`
	Applied *Record `json:"applied,omitempty"`
}

// Runner applies registered migrations in version order.
type Runner struct {
	db         DB
	dialect    storage.Dialect
	ledger     Ledger
	migrations []Migration

	// Clock stamps ledger records; defaults to time.Now.
	Clock func() time.Time
	// Commit, when set, runs once after Up applied at least one migration.
	// Dolt backends use it to create a Dolt commit.
	Commit func(ctx context.Context, message string) error
}

// NewRunner validates migrations and returns a Runner over db.
func NewRunner(db DB, dialect storage.Dialect, ledger Ledger, migrations []Migration) (*Runner, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	seen := make(map[int]bool, len(sorted))
	for _, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q: version must be positive", m.Name)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d %s has no body", m.Version, m.Name)
		}
		seen[m.Version] = true
	}

	return &Runner{
		db:         db,
		dialect:    dialect,
		ledger:     ledger,
		migrations: sorted,
		Clock:      time.Now,
	}, nil
}

// Applied returns the ledger records.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	return r.ledger.Applied(ctx)
}

// Pending returns registered migrations without a ledger record.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	done, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range r.migrations {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Status lists every registered migration with its ledger record.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	done, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		s := Status{Version: m.Version, Name: m.Name}
		if rec, ok := done[m.Version]; ok {
			s.Applied = &rec
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[int]Record, error) {
	recs, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]Record, len(recs))
	for _, rec := range recs {
		done[rec.Version] = rec
	}
	return done, nil
}

// Up applies every pending migration and returns the ones it ran. It stops
// at the first failure; the failed version stays unrecorded.
func (r *Runner) Up(ctx context.Context) ([]Migration, error) {
	if err := r.ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, m := range pending {
		debug.Logf("applying migration %d %s\n", m.Version, m.Name)
		if err := r.apply(ctx, m); err != nil {
			return ran, fmt.Errorf("migration %d %s failed: %w", m.Version, m.Name, err)
		}
		ran = append(ran, m)
	}

	if len(ran) > 0 && r.Commit != nil {
		if err := r.Commit(ctx, commitMessage(ran)); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	rec := Record{Version: m.Version, Name: m.Name}

	if !r.dialect.TransactionalDDL() {
		// DDL commits implicitly here, so the body and the record cannot share
		// a transaction. The record is written only after the body succeeds.
		if err := m.Up(ctx, r.db, r.dialect); err != nil {
			return err
		}
		rec.AppliedAt = r.Clock()
		return r.ledger.Record(ctx, r.db, rec)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := m.Up(ctx, tx, r.dialect); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	rec.AppliedAt = r.Clock()
	if err := r.ledger.Record(ctx, tx, rec); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func commitMessage(ran []Migration) string {
	names := make([]string, 0, len(ran))
	for _, m := range ran {
		names = append(names, fmt.Sprintf("%d_%s", m.Version, m.Name))
	}
	return "calcsnap: apply " + strings.Join(names, ", ")
}
