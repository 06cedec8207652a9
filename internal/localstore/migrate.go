package localstore

import (
	"context"
	"errors"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

var errUnchanged = errors.New("unchanged")

// MigrateSchema fills defaults on records written by older versions: a
// fresh id, updatedAt from ts (or now), and the current version. A missing
// _dirty flag already decodes as false. Nothing is written when every record
// is current, so it is safe to run on every start. It returns the number of
// records that changed.
func (s *Store) MigrateSchema(ctx context.Context) (int, error) {
	n := 0
	err := s.Update(ctx, func(list []attempt.Attempt) ([]attempt.Attempt, error) {
		now := s.now().UnixMilli()
		for i := range list {
			if migrateOne(&list[i], now) {
				n++
			}
		}
		if n == 0 {
			return nil, errUnchanged
		}
		return list, nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.log.Printf("migrated %d attempt(s) to schema v%d", n, attempt.SchemaVersion)
	return n, nil
}

func migrateOne(a *attempt.Attempt, now int64) bool {
	changed := false
	if a.ID == "" {
		a.ID = attempt.NewID()
		changed = true
	}
	if a.UpdatedAt == 0 {
		a.UpdatedAt = a.TS
		if a.UpdatedAt == 0 {
			a.UpdatedAt = now
		}
		changed = true
	}
	if a.Version == 0 {
		a.Version = attempt.SchemaVersion
		changed = true
	}
	return changed
}
