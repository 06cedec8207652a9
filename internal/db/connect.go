package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver accepts the usual aliases for each backend.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx", "pgsql":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported driver: %s", s)
}

// DB is a *sql.DB that rewrites ? placeholders for its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*DB, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		dsn = d.DefaultDSN()
	}
	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := d.Configure(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("configure %s: %w", driver, err)
	}
	db := &DB{DB: sqlDB, Dialect: d}
	if err := db.ensureSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	for _, stmt := range db.Dialect.Schema() {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema failed at: %s\nerror: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Dialect.Rebind(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Dialect.Rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Dialect.Rebind(query), args...)
}

// Ready pings the database; used by the readiness probe.
func (db *DB) Ready(ctx context.Context) error { return db.DB.PingContext(ctx) }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
