package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	// Server-mode Dolt and MySQL
	_ "github.com/go-sql-driver/mysql"
	// Registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/steveyegge/calcsnap/internal/debug"
)

const defaultConnectTimeout = 30 * time.Second

func newConnectBackoff(maxElapsed time.Duration) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isRetryableConnectError returns true for errors a starting or briefly
// unreachable server produces. Authentication and unknown-database errors
// are permanent.
func isRetryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"i/o timeout",
		"gone away",
		"lost connection",
		"the database system is starting up",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// Open opens the configured database and pings it until it answers or
// cfg.ConnectTimeout elapses. The pool is limited to a single connection:
// every statement of a migration runs serially on it.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	applyDefaults(cfg)

	var (
		db  *DB
		err error
	)
	switch cfg.Backend {
	case BackendDoltServer, BackendMySQL:
		db, err = openServer(cfg)
	case BackendPostgres:
		db, err = openPostgres(cfg)
	case BackendDoltEmbedded:
		db, err = openEmbedded(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	// The embedded driver derives a session context from the first Connect
	// and reuses it, so a caller context canceled later would poison the pool.
	pingCtx := ctx
	if cfg.Backend == BackendDoltEmbedded {
		pingCtx = context.Background()
	}
	if err := pingWithRetry(pingCtx, db.DB, cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Backend, err)
	}
	debug.Logf("storage: connected to %s database\n", cfg.Backend)
	return db, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		if cfg.Backend == BackendPostgres {
			cfg.Port = 5432
		} else {
			cfg.Port = 3307
		}
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Database == "" {
		cfg.Database = "calcsnap"
	}
	if cfg.CommitterName == "" {
		cfg.CommitterName = os.Getenv("GIT_AUTHOR_NAME")
		if cfg.CommitterName == "" {
			cfg.CommitterName = "calcsnap"
		}
	}
	if cfg.CommitterEmail == "" {
		cfg.CommitterEmail = os.Getenv("GIT_AUTHOR_EMAIL")
		if cfg.CommitterEmail == "" {
			cfg.CommitterEmail = "calcsnap@localhost"
		}
	}
}

func openServer(cfg *Config) (*DB, error) {
	dsn, err := MySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Backend, err)
	}
	limitToOneConnection(db)
	return &DB{DB: db, backend: cfg.Backend}, nil
}

func openPostgres(cfg *Config) (*DB, error) {
	dsn, err := PostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	limitToOneConnection(db)
	return &DB{DB: db, backend: BackendPostgres}, nil
}

func limitToOneConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}

func pingWithRetry(ctx context.Context, db *sql.DB, maxElapsed time.Duration) error {
	bo := newConnectBackoff(maxElapsed)
	return backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil && isRetryableConnectError(err) {
			debug.Logf("storage: ping failed, retrying: %v\n", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}
