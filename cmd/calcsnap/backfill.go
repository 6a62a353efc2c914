package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/config"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/ui"
)

var backfillCmd = &cobra.Command{
	Use:     "backfill",
	GroupID: GroupMigrations,
	Short:   "Rebuild calculation snapshots outside the migration ledger",
	Long: `Run the snapshot backfill directly: add the snapshot column if missing, read
the calculation and deduction tables, rebuild every calculation and overwrite
its snapshot. Nothing is recorded in calcsnap_migrations.

With --dry-run the snapshots are rebuilt and printed, and the database is not
modified.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		format, _ := cmd.Flags().GetString("format")
		bindFlags(cmd, map[string]string{
			"strict-headers":         "backfill.strict-headers",
			"lenient-foreign-income": "backfill.lenient-foreign-income",
		})

		ctx := getRootContext()
		db, cfg, err := openDatabase(ctx)
		if err != nil {
			FatalErrorWithHint(fmt.Sprintf("failed to open database: %v", err), connectHint(cfg))
		}

		opts := config.BackfillOptions()
		opts.DryRun = dryRun
		res, err := backfill.Migrate(ctx, db, db.Dialect(), config.Layout(), opts)
		closeDatabase(db)
		if err != nil {
			FatalError("%v", err)
		}

		if dryRun {
			if err := outputFormatted(format, res.Snapshots); err != nil {
				FatalError("%v", err)
			}
			return
		}
		if jsonOutput {
			outputJSON(res)
			return
		}
		printBackfillResult(res)
	},
}

func printBackfillResult(r *backfill.Result) {
	if r.SchemaOnly {
		debug.PrintNormal("%s Snapshot column ensured (schema only)\n", ui.RenderPassIcon())
		return
	}
	const w = 10
	debug.PrintNormal("  %s\n", ui.KeyValue("rows", w, fmt.Sprint(r.Rows)))
	debug.PrintNormal("  %s\n", ui.KeyValue("parents", w, fmt.Sprint(r.Parents)))
	debug.PrintNormal("  %s\n", ui.KeyValue("deductions", w, fmt.Sprint(r.Deductions)))
	debug.PrintNormal("  %s\n", ui.KeyValue("written", w, fmt.Sprint(r.Written)))
	if r.Conflicts > 0 {
		debug.PrintNormal("  %s %s\n", ui.RenderWarnIcon(),
			ui.RenderWarn(fmt.Sprintf("%d conflicting header rows ignored", r.Conflicts)))
	}
}

func init() {
	backfillCmd.Flags().Bool("dry-run", false, "Rebuild and print snapshots without writing")
	backfillCmd.Flags().String("format", "json", "Dry-run output format: json or yaml")
	backfillCmd.Flags().Bool("strict-headers", false, "Fail on conflicting calculation headers (config: backfill.strict-headers)")
	backfillCmd.Flags().Bool("lenient-foreign-income", false, "Drop malformed foreign income instead of failing (config: backfill.lenient-foreign-income)")
	rootCmd.AddCommand(backfillCmd)
}
