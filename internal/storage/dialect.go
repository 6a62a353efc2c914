package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported databases.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Placeholder returns the bind parameter marker for the n-th (1-based)
// argument.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quote quotes an identifier that has passed ValidateIdentifier.
func (d Dialect) Quote(ident string) string {
	if d == DialectPostgres {
		return `"` + ident + `"`
	}
	return "`" + ident + "`"
}

// TransactionalDDL reports whether ALTER TABLE participates in transactions.
// MySQL and Dolt commit implicitly on DDL.
func (d Dialect) TransactionalDDL() bool {
	return d == DialectPostgres
}

// JSONType is the column type used for JSON documents.
func (d Dialect) JSONType() string {
	if d == DialectPostgres {
		return "jsonb"
	}
	return "JSON"
}

// AsText wraps a column expression so JSON values scan into a string. The
// embedded Dolt driver otherwise hands back its own JSON document type.
func (d Dialect) AsText(expr string) string {
	if d == DialectPostgres {
		return expr + "::text"
	}
	return "CAST(" + expr + " AS CHAR)"
}

// ColumnExists checks for column on table in the current database or schema.
//
// MySQL must scope the probe to DATABASE(); a Dolt server hosts several
// databases and information_schema would otherwise see all of them.
func (d Dialect) ColumnExists(ctx context.Context, q Querier, table, column string) (bool, error) {
	var query string
	if d == DialectPostgres {
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`
	} else {
		query = `SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	}
	var count int
	if err := q.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query information_schema: %w", err)
	}
	return count > 0, nil
}

// TableExists checks for table in the current database or schema.
func (d Dialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var query string
	if d == DialectPostgres {
		query = `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1`
	} else {
		query = `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = ?`
	}
	var count int
	if err := q.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query information_schema: %w", err)
	}
	return count > 0, nil
}

// AddNullableJSONColumn adds column to table unless it already exists.
//
// PostgreSQL has ADD COLUMN IF NOT EXISTS. MySQL and Dolt do not, so the
// column is probed first, and a duplicate-column error from a concurrent run
// is treated as success.
func (d Dialect) AddNullableJSONColumn(ctx context.Context, q Querier, table, column string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	if err := ValidateIdentifier(column); err != nil {
		return err
	}

	if d == DialectPostgres {
		// #nosec G202 -- identifiers validated above
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s NULL",
			d.Quote(table), d.Quote(column), d.JSONType())
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add %s.%s column: %w", table, column, err)
		}
		return nil
	}

	exists, err := d.ColumnExists(ctx, q, table, column)
	if err != nil {
		return fmt.Errorf("failed to check %s.%s column: %w", table, column, err)
	}
	if exists {
		return nil
	}

	// #nosec G202 -- identifiers validated above
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NULL",
		d.Quote(table), d.Quote(column), d.JSONType())
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		if isDuplicateColumn(err) {
			return nil
		}
		return fmt.Errorf("failed to add %s.%s column: %w", table, column, err)
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "duplicate column") ||
		strings.Contains(errLower, "already exists")
}
