//go:build cgo

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	embedded "github.com/dolthub/driver"
)

const embeddedOpenMaxElapsed = 30 * time.Second

// openEmbedded opens an on-disk Dolt database, creating the directory and the
// database on first use.
func openEmbedded(ctx context.Context, cfg *Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required for %s", BackendDoltEmbedded)
	}
	if err := ValidateIdentifier(cfg.Database); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}
	if info, statErr := os.Stat(cfg.Path); statErr == nil && !info.IsDir() {
		return nil, fmt.Errorf("database path %q is a file, not a directory", cfg.Path)
	}
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The embedded driver sets its working directory to the DSN path; a
	// relative path would be applied twice.
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := createEmbeddedDatabase(ctx, EmbeddedDSN(absPath, cfg, ""), cfg.Database); err != nil {
		return nil, err
	}

	db, connector, err := openEmbeddedConnection(EmbeddedDSN(absPath, cfg, cfg.Database))
	if err != nil {
		return nil, err
	}
	return &DB{DB: db, backend: BackendDoltEmbedded, connector: connector}, nil
}

func createEmbeddedDatabase(ctx context.Context, dsn, database string) error {
	db, connector, err := openEmbeddedConnection(dsn)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
		_ = connector.Close()
	}()

	// #nosec G201 -- database validated by ValidateIdentifier
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)); err != nil {
		return fmt.Errorf("failed to create dolt database: %w", err)
	}
	return nil
}

func openEmbeddedConnection(dsn string) (*sql.DB, *embedded.Connector, error) {
	openCfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Dolt DSN: %w", err)
	}
	openCfg.BackOff = newConnectBackoff(embeddedOpenMaxElapsed)

	connector, err := embedded.NewConnector(openCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Dolt connector: %w", err)
	}
	db := sql.OpenDB(connector)
	limitToOneConnection(db)
	return db, connector, nil
}
