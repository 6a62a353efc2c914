package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/config"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/migrate"
	"github.com/steveyegge/calcsnap/internal/storage"
	"github.com/steveyegge/calcsnap/internal/storage/doltutil"
	"github.com/steveyegge/calcsnap/internal/ui"
)

type migrationRef struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

type migrateReport struct {
	DryRun     bool             `json:"dry_run,omitempty"`
	Applied    []migrationRef   `json:"applied"`
	Pending    []migrationRef   `json:"pending,omitempty"`
	Backfill   *backfill.Result `json:"backfill,omitempty"`
	DoltCommit bool             `json:"dolt_commit"`
}

func refs(ms []migrate.Migration) []migrationRef {
	out := make([]migrationRef, 0, len(ms))
	for _, m := range ms {
		out = append(out, migrationRef{Version: m.Version, Name: m.Name})
	}
	return out
}

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: GroupMigrations,
	Short:   "Apply pending migrations",
	Long: `Apply every pending migration in version order and record it in the
calcsnap_migrations table. A recorded migration never runs again.

Migration 1 (add_calculation_snapshot) adds the snapshot column and backfills
it. With --schema-only it adds the column and writes nothing.

On Dolt backends a Dolt commit is created afterwards unless dolt.auto-commit
is off.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		bindFlags(cmd, map[string]string{"schema-only": "backfill.schema-only"})

		ctx := getRootContext()
		db, cfg, err := openDatabase(ctx)
		if err != nil {
			FatalErrorWithHint(fmt.Sprintf("failed to open database: %v", err), connectHint(cfg))
		}

		report, err := runMigrate(ctx, db, cfg, dryRun)
		closeDatabase(db)
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		printMigrateReport(report)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := getRootContext()
		db, cfg, err := openDatabase(ctx)
		if err != nil {
			FatalErrorWithHint(fmt.Sprintf("failed to open database: %v", err), connectHint(cfg))
		}

		var status []migrate.Status
		runner, err := newRunner(db, nil)
		if err == nil {
			status, err = runner.Status(ctx)
		}
		closeDatabase(db)
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(status)
			return
		}
		printStatus(status)
	},
}

func newRunner(db *storage.DB, onBackfill func(*backfill.Result)) (*migrate.Runner, error) {
	migrations := migrate.Registry(migrate.RegistryConfig{
		Layout:     config.Layout(),
		Options:    config.BackfillOptions(),
		OnBackfill: onBackfill,
	})
	return migrate.NewRunner(db, db.Dialect(), migrate.NewSQLLedger(db, db.Dialect()), migrations)
}

func runMigrate(ctx context.Context, db *storage.DB, cfg *storage.Config, dryRun bool) (*migrateReport, error) {
	report := &migrateReport{DryRun: dryRun}
	runner, err := newRunner(db, func(r *backfill.Result) { report.Backfill = r })
	if err != nil {
		return nil, err
	}

	if dryRun {
		pending, err := runner.Pending(ctx)
		if err != nil {
			return nil, err
		}
		report.Applied = []migrationRef{}
		report.Pending = refs(pending)
		return report, nil
	}

	if db.Backend().IsDolt() {
		autoCommit, err := config.DoltAutoCommit()
		if err != nil {
			return nil, err
		}
		if autoCommit {
			runner.Commit = func(ctx context.Context, message string) error {
				committed, err := doltutil.Commit(ctx, db, message, cfg.CommitterName, cfg.CommitterEmail)
				report.DoltCommit = committed
				return err
			}
		}
	}

	ran, err := runner.Up(ctx)
	if err != nil {
		return nil, err
	}
	report.Applied = refs(ran)
	debug.Logf("applied %d migrations\n", len(ran))
	return report, nil
}

func printMigrateReport(r *migrateReport) {
	if r.DryRun {
		if len(r.Pending) == 0 {
			debug.PrintNormal("%s No pending migrations\n", ui.RenderPassIcon())
			return
		}
		debug.PrintNormal("%s\n", ui.RenderHeading("would apply"))
		for _, m := range r.Pending {
			debug.PrintNormal("  %s %d %s\n", ui.RenderPendingIcon(), m.Version, m.Name)
		}
		return
	}

	if len(r.Applied) == 0 {
		debug.PrintNormal("%s Database is up to date\n", ui.RenderPassIcon())
		return
	}
	for _, m := range r.Applied {
		debug.PrintNormal("%s Applied %d %s\n", ui.RenderPassIcon(), m.Version, m.Name)
	}
	if r.Backfill != nil {
		printBackfillResult(r.Backfill)
	}
	if r.DoltCommit {
		debug.PrintNormal("%s\n", ui.RenderMuted("Dolt commit created"))
	}
}

func printStatus(status []migrate.Status) {
	debug.PrintNormal("%s\n", ui.RenderHeading("migrations"))
	for _, s := range status {
		if s.Applied != nil {
			debug.PrintNormal("  %s %d %s %s\n", ui.RenderPassIcon(), s.Version, s.Name,
				ui.RenderMuted("applied "+s.Applied.AppliedAt.Local().Format(time.RFC3339)))
			continue
		}
		debug.PrintNormal("  %s %d %s %s\n", ui.RenderPendingIcon(), s.Version, s.Name, ui.RenderWarn("pending"))
	}
}

func init() {
	migrateCmd.Flags().Bool("schema-only", false, "Add the snapshot column without backfilling (config: backfill.schema-only)")
	migrateCmd.Flags().Bool("dry-run", false, "List pending migrations without applying them")
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
