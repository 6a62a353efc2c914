package storage

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects table, column and database names that could not
// be interpolated into DDL safely. Identifiers come from configuration, never
// from row data, but they are still rendered into SQL text.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier %q", name)
	}
	return nil
}

// MySQLDSN returns the go-sql-driver/mysql DSN for cfg.
//
// parseTime is always enabled so DATE columns scan as time.Time, and
// clientFoundRows so an UPDATE reports matched rather than changed rows. A
// caller-supplied DSN is parsed and re-rendered with both options forced on.
func MySQLDSN(cfg *Config) (string, error) {
	if cfg.DSN != "" {
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
		}
		mc.ParseTime = true
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil
	}

	if err := ValidateIdentifier(cfg.Database); err != nil {
		return "", fmt.Errorf("invalid database name: %w", err)
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.ClientFoundRows = true
	if cfg.TLS {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN(), nil
}

// PostgresDSN returns a postgres:// URL for cfg, or cfg.DSN when set.
func PostgresDSN(cfg *Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if err := ValidateIdentifier(cfg.Database); err != nil {
		return "", fmt.Errorf("invalid database name: %w", err)
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	q := url.Values{}
	if cfg.TLS {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EmbeddedDSN returns the dolthub/driver DSN for the database directory at
// absPath. An empty database connects without selecting one, which is needed
// to create it.
func EmbeddedDSN(absPath string, cfg *Config, database string) string {
	q := url.Values{}
	q.Set("commitname", cfg.CommitterName)
	q.Set("commitemail", cfg.CommitterEmail)
	if database != "" {
		q.Set("database", database)
	}
	return "file://" + absPath + "?" + q.Encode()
}
