package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/db"
)

// SQLStore persists attempts in remote_attempts. Each record is one
// conditional upsert, so concurrent batches for the same user resolve per row.
type SQLStore struct {
	db  *db.DB
	now Clock
}

func NewSQLStore(d *db.DB, now Clock) *SQLStore {
	if now == nil {
		now = time.Now
	}
	return &SQLStore{db: d, now: now}
}

func (s *SQLStore) List(ctx context.Context, userID string, since int64) ([]attempt.Wire, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM remote_attempts
		WHERE user_id = ? AND updated_at > ?
		ORDER BY updated_at DESC, ts DESC, id ASC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attempt.Wire
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var w attempt.Wire
		if err := json.Unmarshal([]byte(doc), &w); err != nil {
			log.Printf("remote: skipping unreadable row for %s: %v", userID, err)
			continue
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLStore) BulkUpsert(ctx context.Context, userID string, batch []attempt.Wire) ([]string, error) {
	query, stampArgs := s.db.Dialect.UpsertAttempt()
	var saved []string
	for _, w := range batch {
		st := stamped(w, userID, s.now())
		doc, err := json.Marshal(st)
		if err != nil {
			return saved, err
		}
		args := []any{userID, st.ID, st.TS, st.UpdatedAt, string(doc)}
		for i := 0; i < stampArgs; i++ {
			args = append(args, w.Stamp())
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return saved, fmt.Errorf("upsert %s: %w", w.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			saved = appendUnique(saved, w.ID)
		}
	}
	return saved, nil
}
