package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect holds what differs between backends.
type Dialect interface {
	Driver() Driver
	// DriverName is the database/sql driver to open.
	DriverName() string
	DefaultDSN() string
	// Rebind converts ? placeholders if the backend needs another style.
	Rebind(query string) string
	Configure(ctx context.Context, db *sql.DB) error
	// Schema is the list of idempotent DDL statements to run at startup.
	Schema() []string
	// UpsertAttempt returns a conditional upsert into remote_attempts taking
	// (user_id, id, ts, updated_at, doc) followed by the incoming stamp
	// repeated stampArgs times. The row is written only when the stored
	// updated_at is older than the stamp.
	UpsertAttempt() (query string, stampArgs int)
}

func DialectFor(d Driver) (Dialect, error) {
	switch d {
	case DriverSQLite:
		return sqliteDialect{}, nil
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported driver: %s", d)
}

// rebindNumbered rewrites ? to $1, $2, ... outside of quoted strings.
func rebindNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

const upsertOnConflict = `INSERT INTO remote_attempts (user_id, id, ts, updated_at, doc)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE
SET ts = excluded.ts, updated_at = excluded.updated_at, doc = excluded.doc
WHERE remote_attempts.updated_at < ?`
