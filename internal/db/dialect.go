package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect adapts the `?`-placeholder SQL used throughout the repositories
// to the connected driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Open connects to the database for driver and returns the matching dialect.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	switch Dialect(driver) {
	case SQLite:
		database, err := OpenSQLite(dsn)
		return database, SQLite, err
	case Postgres:
		database, err := OpenPostgres(dsn)
		return database, Postgres, err
	default:
		return nil, "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Rebind rewrites `?` placeholders to `$n` for postgres. Queries must not
// contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ForUpdate adds a row lock to a single-row SELECT so that a read-modify-write
// inside one transaction cannot interleave with another. SQLite serializes
// writers on its own.
func (d Dialect) ForUpdate(query string) string {
	if d != Postgres {
		return query
	}
	return query + " FOR UPDATE"
}
