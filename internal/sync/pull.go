package syncx

import (
	"context"
	"fmt"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

type PullResult struct {
	Added    int   `json:"added"`
	Replaced int   `json:"replaced"`
	Dropped  int   `json:"dropped,omitempty"`
	Since    int64 `json:"since"`
}

// Pull fetches remote attempts newer than the newest local one and merges
// them in.
func (c *Client) Pull(ctx context.Context) (PullResult, error) {
	release, err := c.acquire()
	if err != nil {
		return PullResult{}, err
	}
	defer release()
	return c.pull(ctx, -1)
}

// PullSince is Pull with an explicit cursor; 0 fetches everything.
func (c *Client) PullSince(ctx context.Context, since int64) (PullResult, error) {
	release, err := c.acquire()
	if err != nil {
		return PullResult{}, err
	}
	defer release()
	return c.pull(ctx, since)
}

// Cursor is the default pull cursor: the largest stamp held locally.
func (c *Client) Cursor(ctx context.Context) (int64, error) {
	list, err := c.Local.Load(ctx)
	if err != nil {
		return 0, err
	}
	return maxStamp(list), nil
}

func maxStamp(list []attempt.Attempt) int64 {
	var m int64
	for _, a := range list {
		if s := a.Stamp(); s > m {
			m = s
		}
	}
	return m
}

func (c *Client) pull(ctx context.Context, since int64) (PullResult, error) {
	if err := c.ready(); err != nil {
		return PullResult{}, err
	}
	if since < 0 {
		cur, err := c.Cursor(ctx)
		if err != nil {
			return PullResult{}, fmt.Errorf("pull cursor: %w", err)
		}
		since = cur
	}
	res := PullResult{Since: since}

	raws, err := c.Remote.List(ctx, c.UserID, since)
	if err != nil {
		return res, fmt.Errorf("pull since %d: %w", since, err)
	}
	incoming := make([]attempt.Attempt, 0, len(raws))
	for _, raw := range raws {
		a, err := attempt.Normalize(raw)
		if err != nil {
			c.logf("pull: drop remote record: %v", err)
			res.Dropped++
			continue
		}
		incoming = append(incoming, a)
	}
	if len(incoming) == 0 {
		return res, nil
	}

	now := c.Now().UnixMilli()
	err = c.update(ctx, func(list []attempt.Attempt) ([]attempt.Attempt, error) {
		var added, replaced int
		list, added, replaced = Merge(list, incoming, c.UserID, now)
		res.Added, res.Replaced = added, replaced
		if added+replaced == 0 {
			return nil, errNoChange
		}
		return list, nil
	})
	if err != nil {
		return PullResult{Since: since}, fmt.Errorf("merge pulled attempts: %w", err)
	}
	c.logf("pulled since %d: +%d ~%d (dropped %d)", since, res.Added, res.Replaced, res.Dropped)
	return res, nil
}

// Merge folds normalized remote records into the local list.
//
// A remote record matches the local record bound to its id, or failing that
// an unbound local record with the same composite key. Unmatched records are
// appended clean. A matched record is overwritten when the remote copy is
// newer or equally new; the local id and remote binding are kept.
func Merge(list, incoming []attempt.Attempt, userID string, now int64) ([]attempt.Attempt, int, int) {
	byRemote := make(map[string]int, len(list))
	byComposite := make(map[string]int, len(list))
	for i, a := range list {
		if a.Bound() {
			byRemote[a.RemoteID] = i
		} else {
			byComposite[attempt.CompositeKey(a, userID)] = i
		}
	}

	var added, replaced int
	for _, r := range incoming {
		rid := r.RemoteID
		if rid == "" {
			rid = r.ID
		}
		idx, ok := byRemote[rid]
		if !ok {
			key := attempt.CompositeKey(r, userID)
			if idx, ok = byComposite[key]; ok {
				delete(byComposite, key)
				byRemote[rid] = idx
			}
		}

		if !ok {
			n := r.Clone()
			n.RemoteID = rid
			n.Dirty = false
			n.LastPushedAt = now
			if n.Version == 0 {
				n.Version = attempt.SchemaVersion
			}
			list = append(list, n)
			byRemote[rid] = len(list) - 1
			added++
			continue
		}

		cur := list[idx]
		if attempt.LastWriteWins(cur, r, attempt.Incoming) != attempt.Incoming {
			continue
		}
		n := r.Clone()
		if cur.ID != "" {
			n.ID = cur.ID
		}
		n.RemoteID = cur.RemoteID
		if n.RemoteID == "" {
			n.RemoteID = rid
		}
		n.Dirty = false
		n.LastPushedAt = now
		if n.Version == 0 {
			n.Version = attempt.SchemaVersion
		}
		list[idx] = n
		replaced++
	}
	return list, added, replaced
}
