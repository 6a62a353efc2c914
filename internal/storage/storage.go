// Package storage opens the single database connection used by calcsnap and
// describes the SQL dialect spoken over it.
//
// Supported backends:
//   - dolt-server / mysql: a running dolt sql-server or MySQL via go-sql-driver/mysql
//   - dolt-embedded: an on-disk Dolt database via github.com/dolthub/driver (cgo builds only)
//   - postgres: PostgreSQL via pgx's database/sql adapter
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/steveyegge/calcsnap/internal/storage/doltutil"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used by migration
// bodies. Every statement goes through it serially.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend selects the driver and connection style.
type Backend string

const (
	BackendDoltServer   Backend = "dolt-server"
	BackendDoltEmbedded Backend = "dolt-embedded"
	BackendMySQL        Backend = "mysql"
	BackendPostgres     Backend = "postgres"
)

// ParseBackend validates a backend name from config or flags.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendDoltServer, BackendDoltEmbedded, BackendMySQL, BackendPostgres:
		return b, nil
	}
	return "", fmt.Errorf("unknown database backend %q (want dolt-server, dolt-embedded, mysql or postgres)", s)
}

// Dialect returns the SQL dialect spoken by the backend.
func (b Backend) Dialect() Dialect {
	if b == BackendPostgres {
		return DialectPostgres
	}
	return DialectMySQL
}

// IsDolt reports whether the backend is a Dolt database, which supports
// DOLT_COMMIT after a migration.
func (b Backend) IsDolt() bool {
	return b == BackendDoltServer || b == BackendDoltEmbedded
}

// Config holds connection settings.
type Config struct {
	Backend Backend
	DSN     string // Full DSN; when set, the fields below are ignored except Database for embedded

	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool

	Path string // Embedded Dolt directory

	CommitterName  string
	CommitterEmail string

	ConnectTimeout time.Duration // Bounds the ping backoff (default 30s)
}

// DB is an open database handle limited to one connection.
type DB struct {
	*sql.DB
	backend   Backend
	connector io.Closer // embedded engine, closed after the pool
}

// Backend returns the backend the handle was opened with.
func (d *DB) Backend() Backend {
	return d.backend
}

// Dialect returns the SQL dialect for this handle.
func (d *DB) Dialect() Dialect {
	return d.backend.Dialect()
}

// Close closes the pool and, in embedded mode, the Dolt engine. The embedded
// engine can hang on shutdown, so both closes are bounded.
func (d *DB) Close() error {
	var err error
	if d.DB != nil {
		if cerr := doltutil.CloseWithTimeout("db", d.DB.Close); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = errors.Join(err, cerr)
		}
	}
	if d.connector != nil {
		if cerr := doltutil.CloseWithTimeout("embedded connector", d.connector.Close); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = errors.Join(err, cerr)
		}
		d.connector = nil
	}
	return err
}
