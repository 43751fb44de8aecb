package dialect

import (
	"context"
	"database/sql/driver"
	"strings"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the
// statements compiled by the query package.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}

// Dialect describes how one SQL flavour escapes identifiers and quotes
// string literals.
type Dialect struct {
	Name        string
	EscapeOpen  string
	EscapeClose string
	QuoteChar   string
	// BackslashEscapes reports whether a backslash inside a quoted literal
	// starts an escape sequence and must itself be escaped.
	BackslashEscapes bool
}

var dialects = map[string]Dialect{
	MySQL:    {Name: MySQL, EscapeOpen: "`", EscapeClose: "`", QuoteChar: "'", BackslashEscapes: true},
	SQLite:   {Name: SQLite, EscapeOpen: `"`, EscapeClose: `"`, QuoteChar: "'"},
	Postgres: {Name: Postgres, EscapeOpen: `"`, EscapeClose: `"`, QuoteChar: "'"},
}

// Get returns the Dialect registered under name. Names with a known dialect
// prefix (e.g. "sqlite3" or a telemetry-wrapped "mysql-otel") resolve to that
// dialect.
func Get(name string) (Dialect, bool) {
	if d, ok := dialects[name]; ok {
		return d, true
	}
	for _, n := range []string{MySQL, SQLite, Postgres} {
		if strings.HasPrefix(name, n) {
			return dialects[n], true
		}
	}
	return Dialect{}, false
}

// Escape quotes an identifier. Closing escape characters inside the
// identifier are doubled.
func (d Dialect) Escape(ident string) string {
	ident = d.Trim(ident)
	return d.EscapeOpen + strings.ReplaceAll(ident, d.EscapeClose, d.EscapeClose+d.EscapeClose) + d.EscapeClose
}

// Qualify escapes a "table.column" pair.
func (d Dialect) Qualify(table, column string) string {
	return d.Escape(table) + "." + d.Escape(column)
}

// Trim strips surrounding whitespace and escape characters from an identifier.
func (d Dialect) Trim(ident string) string {
	return strings.Trim(ident, " "+d.EscapeOpen+d.EscapeClose)
}

// Quote renders s as a string literal.
func (d Dialect) Quote(s string) string {
	if d.BackslashEscapes {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return d.QuoteChar + strings.ReplaceAll(s, d.QuoteChar, d.QuoteChar+d.QuoteChar) + d.QuoteChar
}
