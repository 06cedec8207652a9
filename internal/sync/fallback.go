package syncx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

// Source is one way of listing attempts. Fetch returns nil when the source
// is not available; errors are treated the same way.
type Source struct {
	Name  string
	Fetch func(ctx context.Context) ([]attempt.Attempt, error)
}

// Chain tries sources in order and returns the first result.
type Chain []Source

type Listing struct {
	Source   string
	Attempts []attempt.Attempt
}

var ErrNoSource = errors.New("no attempt source available")

func (ch Chain) List(ctx context.Context, onErr func(source string, err error)) (Listing, error) {
	for _, src := range ch {
		if src.Fetch == nil {
			continue
		}
		list, err := src.Fetch(ctx)
		if err != nil {
			if onErr != nil {
				onErr(src.Name, err)
			}
			continue
		}
		if list == nil {
			continue
		}
		return Listing{Source: src.Name, Attempts: list}, nil
	}
	return Listing{}, ErrNoSource
}

// Sources is the client's read chain: in-process adapter, REST, local store.
func (c *Client) Sources() Chain {
	var ch Chain
	if c.Adapter != nil && c.UserID != "" {
		ch = append(ch, Source{Name: "adapter", Fetch: func(ctx context.Context) ([]attempt.Attempt, error) {
			return c.Adapter.ListAttempts(ctx, c.UserID)
		}})
	}
	if c.ready() == nil {
		ch = append(ch, Source{Name: "rest", Fetch: c.listRemote})
	}
	ch = append(ch, Source{Name: "local", Fetch: c.Local.Load})
	return ch
}

func (c *Client) listRemote(ctx context.Context) ([]attempt.Attempt, error) {
	raws, err := c.Remote.List(ctx, c.UserID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]attempt.Attempt, 0, len(raws))
	for _, raw := range raws {
		a, err := attempt.Normalize(raw)
		if err != nil {
			c.logf("list: drop remote record: %v", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// View caches the last successful listing for read-only consumers such as
// dashboards.
type View struct {
	client *Client

	mu     sync.Mutex
	cache  []attempt.Attempt
	source string
}

func (c *Client) View() *View { return &View{client: c} }

// Refresh walks the source chain and caches a non-empty result.
func (v *View) Refresh(ctx context.Context) (Listing, error) {
	l, err := v.client.Sources().List(ctx, func(src string, err error) {
		v.client.logf("list via %s failed, falling back: %v", src, err)
	})
	if err != nil {
		return l, err
	}
	SortNewestFirst(l.Attempts)
	if len(l.Attempts) > 0 {
		v.mu.Lock()
		v.cache = l.Attempts
		v.source = l.Source
		v.mu.Unlock()
	}
	return l, nil
}

// All returns the cached listing, or the local store when nothing is cached.
func (v *View) All(ctx context.Context) ([]attempt.Attempt, string, error) {
	v.mu.Lock()
	cached, src := v.cache, v.source
	v.mu.Unlock()
	if len(cached) > 0 {
		out := make([]attempt.Attempt, len(cached))
		copy(out, cached)
		return out, src, nil
	}
	list, err := v.client.Local.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("local attempts: %w", err)
	}
	SortNewestFirst(list)
	return list, "local", nil
}

func SortNewestFirst(list []attempt.Attempt) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].TS > list[j].TS })
}
