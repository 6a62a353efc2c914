// Package config loads calcsnap settings from .calcsnap/config.yaml, the user
// config directory and CALCSNAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/steveyegge/calcsnap/internal/backfill"
	"github.com/steveyegge/calcsnap/internal/storage"
	"github.com/steveyegge/calcsnap/internal/telemetry"
)

const (
	// ProjectDir is the per-project directory holding config.yaml.
	ProjectDir = ".calcsnap"
	envPrefix  = "CALCSNAP"
)

var v *viper.Viper

// Initialize discovers and loads the config file. Call it once at startup;
// calling it again starts over from defaults.
func Initialize() error {
	return InitializeFrom("")
}

// InitializeFrom loads configFile when non-empty instead of searching.
//
// Search order: .calcsnap/config.yaml in the working directory or any
// parent, then <user config dir>/calcsnap/config.yaml.
func InitializeFrom(configFile string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("json", false)

	v.SetDefault("database.backend", string(storage.BackendDoltServer))
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3307)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "calcsnap")
	v.SetDefault("database.tls", false)
	v.SetDefault("database.path", filepath.Join(ProjectDir, "dolt"))
	v.SetDefault("database.connect-timeout", 30*time.Second)

	layout := backfill.DefaultLayout()
	v.SetDefault("tables.calculation", layout.CalculationTable)
	v.SetDefault("tables.deduction", layout.DeductionTable)
	v.SetDefault("tables.snapshot-column", layout.SnapshotColumn)

	v.SetDefault("backfill.strict-headers", false)
	v.SetDefault("backfill.lenient-foreign-income", false)
	v.SetDefault("backfill.schema-only", false)

	v.SetDefault("dolt.auto-commit", "on")
	v.SetDefault("dolt.committer-name", "")
	v.SetDefault("dolt.committer-email", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("telemetry.otlp-endpoint", "")
}

func findConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ProjectDir, "config.yaml")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
			if filepath.Dir(dir) == dir {
				break
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(configDir, "calcsnap", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ConfigFileUsed returns the loaded config file, or "" when running on
// defaults and environment only.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlag makes an explicitly set flag override key.
func BindFlag(key string, f *pflag.Flag) error {
	if v == nil || f == nil {
		return nil
	}
	return v.BindPFlag(key, f)
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// AllSettings returns the merged settings as a nested map.
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}

// Set overrides key for the rest of the process.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

// Database returns the connection settings.
func Database() (*storage.Config, error) {
	backend, err := storage.ParseBackend(GetString("database.backend"))
	if err != nil {
		return nil, err
	}
	return &storage.Config{
		Backend:        backend,
		DSN:            GetString("database.dsn"),
		Host:           GetString("database.host"),
		Port:           GetInt("database.port"),
		User:           GetString("database.user"),
		Password:       GetString("database.password"),
		Database:       GetString("database.name"),
		TLS:            GetBool("database.tls"),
		Path:           GetString("database.path"),
		CommitterName:  GetString("dolt.committer-name"),
		CommitterEmail: GetString("dolt.committer-email"),
		ConnectTimeout: GetDuration("database.connect-timeout"),
	}, nil
}

// Layout returns the legacy table names.
func Layout() backfill.Layout {
	return backfill.Layout{
		CalculationTable: GetString("tables.calculation"),
		DeductionTable:   GetString("tables.deduction"),
		SnapshotColumn:   GetString("tables.snapshot-column"),
	}
}

// BackfillOptions returns the pass policies. Clock, id generation and
// warnings keep their defaults.
func BackfillOptions() backfill.Options {
	return backfill.Options{
		StrictHeaders:        GetBool("backfill.strict-headers"),
		LenientForeignIncome: GetBool("backfill.lenient-foreign-income"),
		SchemaOnly:           GetBool("backfill.schema-only"),
	}
}

// Telemetry returns exporter settings. An unset endpoint falls back to the
// standard OTEL_EXPORTER_OTLP_* variables.
func Telemetry(serviceName, version string) telemetry.Settings {
	endpoint := GetString("telemetry.otlp-endpoint")
	for _, env := range []string{"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if endpoint != "" {
			break
		}
		endpoint = os.Getenv(env)
	}
	return telemetry.Settings{
		Enabled:      GetBool("telemetry.enabled"),
		Stdout:       GetBool("telemetry.stdout"),
		OTLPEndpoint: endpoint,
		ServiceName:  serviceName,
		Version:      version,
	}
}

// DoltAutoCommit reports whether a Dolt commit follows a successful migrate.
// Accepts on/off as well as boolean spellings.
func DoltAutoCommit() (bool, error) {
	switch s := strings.ToLower(strings.TrimSpace(GetString("dolt.auto-commit"))); s {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid dolt.auto-commit %q (want on or off)", s)
	}
}

// ResetForTesting drops the loaded configuration.
func ResetForTesting() {
	v = nil
}
