package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mind-engage/dsat-sync/internal/db"
)

const EventAttemptsSaved = "attempts.saved"

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// EventLog appends one row to event_log per write. It is a Notifier.
type EventLog struct {
	db     *db.DB
	siteID string
	now    Clock
}

func NewEventLog(d *db.DB, siteID string) *EventLog {
	return &EventLog{db: d, siteID: siteID, now: time.Now}
}

func (r *EventLog) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, ev_key, data, created_at)
		 VALUES (?,?,?,?,?)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

func (r *EventLog) AttemptsSaved(ctx context.Context, userID string, ids []string) error {
	data, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{SiteID: r.siteID, Type: EventAttemptsSaved, Key: userID, DataJSON: string(data)})
}

// After returns up to limit events with seq greater than after, oldest first.
func (r *EventLog) After(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, ev_key, data, created_at FROM event_log
		 WHERE seq > ? ORDER BY seq ASC LIMIT ?`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
