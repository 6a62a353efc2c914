package doltutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Commit records the working set as a Dolt commit. An explicit author is
// always passed; in SQL procedure mode Dolt otherwise attributes the commit
// to the SQL user. A clean working set is not an error.
func Commit(ctx context.Context, db Execer, message, authorName, authorEmail string) (bool, error) {
	author := fmt.Sprintf("%s <%s>", authorName, authorEmail)
	_, err := db.ExecContext(ctx, "CALL DOLT_COMMIT('-Am', ?, '--author', ?)", message, author)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "nothing to commit") {
			return false, nil
		}
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}
