package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

// MemoryStore keeps attempts in process memory. Used in tests and for
// single-process deployments without a database.
type MemoryStore struct {
	mu     sync.Mutex
	now    Clock
	byUser map[string]map[string]attempt.Wire
}

func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, byUser: map[string]map[string]attempt.Wire{}}
}

func (m *MemoryStore) List(_ context.Context, userID string, since int64) ([]attempt.Wire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]attempt.Wire, 0, len(m.byUser[userID]))
	for _, w := range m.byUser[userID] {
		if w.UpdatedAt > since {
			out = append(out, w)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) BulkUpsert(_ context.Context, userID string, batch []attempt.Wire) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.byUser[userID]
	if rows == nil {
		rows = map[string]attempt.Wire{}
		m.byUser[userID] = rows
	}
	var saved []string
	for _, w := range batch {
		if cur, ok := rows[w.ID]; ok {
			if attempt.LastWriteWins(cur.ToAttempt(), w.ToAttempt(), attempt.Current) == attempt.Current {
				continue
			}
		}
		rows[w.ID] = stamped(w, userID, m.now())
		saved = appendUnique(saved, w.ID)
	}
	return saved, nil
}

func sortNewestFirst(list []attempt.Wire) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		if a.TS != b.TS {
			return a.TS > b.TS
		}
		return a.ID < b.ID
	})
}
