package syncx

import (
	"context"
	"fmt"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

type PushResult struct {
	Pushed   int      `json:"pushed"`
	SavedIDs []string `json:"savedIds,omitempty"`
}

// Push sends every dirty attempt to the remote store in one batch. On
// failure no dirty flag is cleared, so the next push resends the same set.
func (c *Client) Push(ctx context.Context) (PushResult, error) {
	release, err := c.acquire()
	if err != nil {
		return PushResult{}, err
	}
	defer release()
	return c.push(ctx)
}

func (c *Client) push(ctx context.Context) (PushResult, error) {
	if err := c.ready(); err != nil {
		return PushResult{}, err
	}

	var batch []attempt.Attempt
	err := c.update(ctx, func(list []attempt.Attempt) ([]attempt.Attempt, error) {
		batch = batch[:0]
		changed := false
		for i := range list {
			a := &list[i]
			// never confirmed by the remote store
			if !a.Dirty && !a.Bound() && a.LastPushedAt == 0 {
				a.Dirty = true
				changed = true
			}
			if !a.Dirty {
				continue
			}
			if a.ID == "" {
				a.ID = attempt.CompositeID(a.Owner(c.UserID), a.BaseID, a.Kind, a.TS)
				changed = true
			}
			batch = append(batch, a.Clone())
		}
		if !changed {
			return nil, errNoChange
		}
		return list, nil
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("prepare push: %w", err)
	}
	if len(batch) == 0 {
		return PushResult{}, nil
	}

	wires := make([]attempt.Wire, len(batch))
	sent := make(map[string]int64, len(batch))
	for i, a := range batch {
		w := a.ToWire()
		if w.UserID == "" {
			w.UserID = c.UserID
		}
		wires[i] = w
		sent[a.ID] = a.Stamp()
	}

	saved, err := c.Remote.BulkUpsert(ctx, c.UserID, wires)
	if err != nil {
		return PushResult{}, fmt.Errorf("push %d attempt(s): %w", len(wires), err)
	}

	now := c.Now().UnixMilli()
	err = c.update(ctx, func(list []attempt.Attempt) ([]attempt.Attempt, error) {
		for i := range list {
			a := &list[i]
			stamp, ok := sent[a.ID]
			// edited again while the push was in flight: stays dirty
			if !ok || !a.Dirty || a.Stamp() != stamp {
				continue
			}
			a.Dirty = false
			a.LastPushedAt = now
			if a.RemoteID == "" {
				a.RemoteID = a.ID
			}
		}
		return list, nil
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("mark pushed: %w", err)
	}
	c.logf("pushed %d attempt(s), remote saved %d", len(wires), len(saved))
	return PushResult{Pushed: len(wires), SavedIDs: saved}, nil
}
