// Package sqlutil provides SQL dialect helpers shared by the planner,
// executor and introspection loaders.
package sqlutil

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect identifies the SQL flavour of the connected database.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured dialect name onto a Dialect.
// "tidb" is accepted as an alias for MySQL.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mysql", "tidb":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", name)
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// QuoteIdentifier quotes a table or column name for this dialect.
func (d Dialect) QuoteIdentifier(name string) string {
	if d == Postgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return QuoteIdentifier(name)
}

// Placeholder returns the squirrel placeholder format for the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// SupportsReturning reports whether generated keys are read with RETURNING
// instead of LastInsertId.
func (d Dialect) SupportsReturning() bool {
	return d == Postgres
}

// EmptyInsert returns the statement suffix used to insert a row made only of
// defaults.
func (d Dialect) EmptyInsert() string {
	if d == MySQL {
		return "() VALUES ()"
	}
	return "DEFAULT VALUES"
}

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}
