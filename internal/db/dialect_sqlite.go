package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite
)

type sqliteDialect struct{}

func (sqliteDialect) Driver() Driver             { return DriverSQLite }
func (sqliteDialect) DriverName() string         { return "sqlite" }
func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) DefaultDSN() string {
	return "file:dsat-sync.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
}

func (sqliteDialect) Configure(ctx context.Context, db *sql.DB) error {
	// SQLite should not use many concurrent writers; keep pool small.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (sqliteDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS remote_attempts (
  user_id    TEXT NOT NULL,
  id         TEXT NOT NULL,
  ts         INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  doc        TEXT NOT NULL,
  PRIMARY KEY (user_id, id)
)`,
		`CREATE INDEX IF NOT EXISTS remote_attempts_user_updated ON remote_attempts(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS event_log (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id    TEXT NOT NULL,
  typ        TEXT NOT NULL,
  ev_key     TEXT NOT NULL,
  data       TEXT NOT NULL,
  created_at INTEGER NOT NULL
)`,
	}
}

func (sqliteDialect) UpsertAttempt() (string, int) { return upsertOnConflict, 1 }
