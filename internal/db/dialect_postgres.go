package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
)

type postgresDialect struct{}

func (postgresDialect) Driver() Driver             { return DriverPostgres }
func (postgresDialect) DriverName() string         { return "pgx" }
func (postgresDialect) Rebind(query string) string { return rebindNumbered(query) }

func (postgresDialect) DefaultDSN() string {
	return "postgres://localhost:5432/dsat?sslmode=disable"
}

func (postgresDialect) Configure(_ context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (postgresDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS remote_attempts (
  user_id    TEXT NOT NULL,
  id         TEXT NOT NULL,
  ts         BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  doc        TEXT NOT NULL,
  PRIMARY KEY (user_id, id)
)`,
		`CREATE INDEX IF NOT EXISTS remote_attempts_user_updated ON remote_attempts(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS event_log (
  seq        BIGSERIAL PRIMARY KEY,
  site_id    TEXT NOT NULL,
  typ        TEXT NOT NULL,
  ev_key     TEXT NOT NULL,
  data       TEXT NOT NULL,
  created_at BIGINT NOT NULL
)`,
	}
}

func (postgresDialect) UpsertAttempt() (string, int) { return upsertOnConflict, 1 }
