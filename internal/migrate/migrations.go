package migrate

import (
	"context"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/storage"
)

// RegistryConfig parameterizes the registered migrations.
type RegistryConfig struct {
	Layout  backfill.Layout
	Options backfill.Options
	// OnBackfill, when set, receives the result of the snapshot backfill.
	OnBackfill func(*backfill.Result)
}

// Registry returns every known migration.
func Registry(cfg RegistryConfig) []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "add_calculation_snapshot",
			Up: func(ctx context.Context, q storage.Querier, dialect storage.Dialect) error {
				res, err := backfill.Migrate(ctx, q, dialect, cfg.Layout, cfg.Options)
				if err != nil {
					return err
				}
				if cfg.OnBackfill != nil {
					cfg.OnBackfill(res)
				}
				return nil
			},
		},
	}
}
