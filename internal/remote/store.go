// Package remote is the server side of attempt sync: a user-scoped store of
// attempts with an ignore-if-not-newer upsert.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

var (
	ErrInvalidBatch = errors.New("invalid batch")
	ErrNoUser       = errors.New("user id required")
)

type Clock func() time.Time

// Store is the persistence contract. BulkUpsert applies every record
// independently and returns the ids actually written; records whose stamp is
// not newer than the stored copy are ignored.
type Store interface {
	List(ctx context.Context, userID string, since int64) ([]attempt.Wire, error)
	BulkUpsert(ctx context.Context, userID string, batch []attempt.Wire) ([]string, error)
}

// ValidateBatch rejects the whole batch when any record is unusable.
func ValidateBatch(batch []attempt.Wire) error {
	for i, w := range batch {
		if err := validateWire(w); err != nil {
			return fmt.Errorf("%w: attempts[%d]: %v", ErrInvalidBatch, i, err)
		}
	}
	return nil
}

func validateWire(w attempt.Wire) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	if err := attempt.ValidateWire(raw); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", w.Kind)
	}
	if w.Mode != "" && !w.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", w.Mode)
	}
	for name, t := range map[string]attempt.Tally{"rw": w.Sections.RW, "math": w.Sections.Math} {
		if t.Correct > t.Total {
			return fmt.Errorf("sections.%s: correct %d > total %d", name, t.Correct, t.Total)
		}
	}
	return nil
}

// stamped is the copy that gets stored: owned by userID, with updatedAt moved
// up to the server clock so other devices' since cursors pick it up.
func stamped(w attempt.Wire, userID string, now time.Time) attempt.Wire {
	w.UserID = userID
	st := w.Stamp()
	if ms := now.UnixMilli(); ms > st {
		st = ms
	}
	w.UpdatedAt = st
	if w.Sections != nil {
		sec := *w.Sections
		w.Sections = &sec
	}
	if w.Skills != nil {
		skills := make(map[string]attempt.Tally, len(w.Skills))
		for k, v := range w.Skills {
			skills[k] = v
		}
		w.Skills = skills
	}
	return w
}

func appendUnique(ids []string, id string) []string {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
