package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql" // driver: mysql
)

type mysqlDialect struct{}

func (mysqlDialect) Driver() Driver { return DriverMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }

// MySQL uses ? placeholders like SQLite, no rewrite needed
func (mysqlDialect) Rebind(query string) string { return query }

func (mysqlDialect) DefaultDSN() string {
	return "root@tcp(localhost:3306)/dsat?parseTime=true"
}

func (mysqlDialect) Configure(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (mysqlDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS remote_attempts (
  user_id    VARCHAR(191) NOT NULL,
  id         VARCHAR(191) NOT NULL,
  ts         BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  doc        LONGTEXT NOT NULL,
  PRIMARY KEY (user_id, id),
  INDEX remote_attempts_user_updated (user_id, updated_at)
)`,
		`CREATE TABLE IF NOT EXISTS event_log (
  seq        BIGINT AUTO_INCREMENT PRIMARY KEY,
  site_id    VARCHAR(191) NOT NULL,
  typ        VARCHAR(64) NOT NULL,
  ev_key     VARCHAR(191) NOT NULL,
  data       LONGTEXT NOT NULL,
  created_at BIGINT NOT NULL
)`,
	}
}

// Assignments run left to right against the updated row, so updated_at is
// compared before it is overwritten.
func (mysqlDialect) UpsertAttempt() (string, int) {
	return `INSERT INTO remote_attempts (user_id, id, ts, updated_at, doc)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  doc = IF(updated_at < ?, VALUES(doc), doc),
  ts = IF(updated_at < ?, VALUES(ts), ts),
  updated_at = IF(updated_at < ?, VALUES(updated_at), updated_at)`, 3
}
