package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
  seq  INTEGER PRIMARY KEY AUTOINCREMENT,
  id   TEXT NOT NULL DEFAULT '',
  doc  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_id ON attempts(id);
`

// Store keeps the device's attempts as JSON documents in one SQLite file, in
// the order they were written. It assumes a single writer.
type Store struct {
	db      *sql.DB
	now     func() time.Time
	log     *log.Logger
	changed chan struct{}
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }
func WithLogger(l *log.Logger) Option       { return func(s *Store) { s.log = l } }

// Open connects to the SQLite database at dsn, applies pragmas and creates
// the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{
		db:      db,
		now:     time.Now,
		log:     log.New(os.Stderr, "[localstore] ", log.LstdFlags),
		changed: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Changed signals after every write. Signals coalesce.
func (s *Store) Changed() <-chan struct{} { return s.changed }

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultPath resolves the database file path in priority order:
// 1. DSAT_DB environment variable
// 2. $XDG_DATA_HOME/dsat/attempts.db
// 3. ~/.local/share/dsat/attempts.db
func DefaultPath() (string, error) {
	if p := os.Getenv("DSAT_DB"); p != "" {
		return p, ensureDir(p)
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	p := filepath.Join(dataHome, "dsat", "attempts.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load returns every stored attempt in insertion order. Documents that no
// longer decode are skipped with a warning.
func (s *Store) Load(ctx context.Context) ([]attempt.Attempt, error) {
	return s.load(ctx, s.db)
}

func (s *Store) load(ctx context.Context, q querier) ([]attempt.Attempt, error) {
	rows, err := q.QueryContext(ctx, `SELECT seq, doc FROM attempts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()

	out := []attempt.Attempt{}
	for rows.Next() {
		var (
			seq int64
			doc string
		)
		if err := rows.Scan(&seq, &doc); err != nil {
			return nil, err
		}
		var a attempt.Attempt
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			s.log.Printf("skip unreadable attempt row %d: %v", seq, err)
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) insert(ctx context.Context, q querier, a attempt.Attempt) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt %s: %w", a.ID, err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO attempts (id, doc) VALUES (?, ?)`, a.ID, string(doc)); err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

// Append adds one attempt at the end of the collection.
func (s *Store) Append(ctx context.Context, a attempt.Attempt) error {
	if err := s.insert(ctx, s.db, a); err != nil {
		return err
	}
	s.notify()
	return nil
}

// SaveAll replaces the whole collection in one transaction.
func (s *Store) SaveAll(ctx context.Context, list []attempt.Attempt) error {
	return s.Update(ctx, func([]attempt.Attempt) ([]attempt.Attempt, error) { return list, nil })
}

// Update loads the collection, hands it to fn and writes back what fn
// returns, all inside one transaction. If fn fails nothing is written.
func (s *Store) Update(ctx context.Context, fn func([]attempt.Attempt) ([]attempt.Attempt, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cur, err := s.load(ctx, tx)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	for _, a := range next {
		if err := s.insert(ctx, tx, a); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.notify()
	return nil
}

// Clear removes every stored attempt.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	s.notify()
	return nil
}

// Count returns total and dirty record counts.
func (s *Store) Count(ctx context.Context) (total, dirty int, err error) {
	list, err := s.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, a := range list {
		if a.Dirty {
			dirty++
		}
	}
	return len(list), dirty, nil
}
