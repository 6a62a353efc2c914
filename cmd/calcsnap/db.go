package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/calcsnap/internal/config"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/storage"
)

// openDatabase opens the configured database. The returned config has its
// defaults applied, including the Dolt committer identity.
func openDatabase(ctx context.Context) (*storage.DB, *storage.Config, error) {
	cfg, err := config.Database()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	debug.Logf("opened %s database %s\n", cfg.Backend, cfg.Database)
	return db, cfg, nil
}

// connectHint suggests a fix for an open failure.
func connectHint(cfg *storage.Config) string {
	switch {
	case cfg == nil:
		return "Check database.* settings in .calcsnap/config.yaml"
	case cfg.Backend == storage.BackendDoltServer:
		return fmt.Sprintf("Start a server with 'dolt sql-server --port %d', or use --backend dolt-embedded", cfg.Port)
	case cfg.Backend == storage.BackendDoltEmbedded:
		return "Embedded Dolt needs a cgo build; otherwise use --backend dolt-server"
	default:
		return "Check the DSN or database.host/port/user settings"
	}
}

// closeDatabase closes db, reporting errors as warnings.
func closeDatabase(db *storage.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil && !errors.Is(err, context.Canceled) {
		WarnError("failed to close database: %v", err)
	}
}
