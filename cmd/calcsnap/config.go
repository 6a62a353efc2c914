package main

import (
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/steveyegge/calcsnap/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Show the effective configuration",
	Long: `Print the merged configuration (defaults, config file, CALCSNAP_* environment
and flags) as YAML. The database password is redacted.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := redactSettings(config.AllSettings())
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"config_file": config.ConfigFileUsed(),
				"settings":    settings,
			})
			return
		}
		if err := writeYAML(os.Stdout, settings); err != nil {
			FatalError("%v", err)
		}
	},
}

const redacted = "********"

// redactSettings masks database.password and the password inside
// database.dsn in a viper settings map.
func redactSettings(settings map[string]interface{}) map[string]interface{} {
	db, ok := settings["database"].(map[string]interface{})
	if !ok {
		return settings
	}
	if pw, ok := db["password"].(string); ok && pw != "" {
		db["password"] = redacted
	}
	if dsn, ok := db["dsn"].(string); ok && dsn != "" {
		db["dsn"] = redactDSN(dsn)
	}
	return settings
}

// redactDSN masks the password of a URL, key=value or MySQL DSN. A DSN that
// parses as none of those is masked entirely.
func redactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return redacted
		}
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		return u.String()
	}
	if strings.Contains(dsn, "password=") {
		fields := strings.Fields(dsn)
		for i, f := range fields {
			if strings.HasPrefix(f, "password=") {
				fields[i] = "password=" + redacted
			}
		}
		return strings.Join(fields, " ")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return redacted
	}
	if cfg.Passwd != "" {
		cfg.Passwd = redacted
	}
	return cfg.FormatDSN()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
