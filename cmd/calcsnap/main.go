package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/calcsnap/internal/config"
	"github.com/steveyegge/calcsnap/internal/debug"
	"github.com/steveyegge/calcsnap/internal/telemetry"
	"github.com/steveyegge/calcsnap/internal/ui"
)

// Command groups for help output.
const (
	GroupMigrations = "migrations"
	GroupSetup      = "setup"
)

var (
	configFile  string
	backendFlag string
	dsnFlag     string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupMigrations, Title: "Migrations:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: discover .calcsnap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Database backend: dolt-server, dolt-embedded, mysql or postgres (config: database.backend)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Full database DSN, overrides host/port/user settings (config: database.dsn)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "calcsnap",
	Short: "calcsnap - calculation snapshot migration",
	Long: `Adds a JSON snapshot column to the legacy calculation table and backfills it
by rebuilding each calculation from its header and deduction rows.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("calcsnap version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()
		ui.Init()

		if err := config.InitializeFrom(configFile); err != nil {
			FatalError("failed to initialize config: %v", err)
		}
		applyFlagOverrides(cmd)
		debug.Logf("config: %s\n", configSource())

		if err := telemetry.Init(rootCtx, config.Telemetry("calcsnap", Version)); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

// setupSignalContext cancels rootCtx on SIGINT/SIGTERM. A migration stops
// before its next statement; rows already written stay written.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// applyFlagOverrides binds the persistent flags into config, where an
// explicitly set flag outranks the config file and environment.
func applyFlagOverrides(cmd *cobra.Command) {
	bindFlags(cmd, map[string]string{
		"backend": "database.backend",
		"dsn":     "database.dsn",
		"json":    "json",
	})
	jsonOutput = config.GetBool("json")
}

// bindFlags binds each named flag of cmd to its config key. Flags cmd does
// not define are skipped.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		if err := config.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			FatalError("failed to bind --%s: %v", name, err)
		}
	}
}

func configSource() string {
	if f := config.ConfigFileUsed(); f != "" {
		return f
	}
	return "defaults and environment"
}

func getRootContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// shutdown flushes telemetry and releases the signal handler.
func shutdown() {
	if err := telemetry.Shutdown(context.Background()); err != nil {
		debug.Logf("telemetry shutdown: %v\n", err)
	}
	if rootCancel != nil {
		rootCancel()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
