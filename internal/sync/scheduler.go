package syncx

import (
	"context"
	"errors"
	"time"
)

// DefaultInterval is how often the background sync runs.
const DefaultInterval = 3 * time.Minute

// Scheduler runs SyncNow on a fixed interval and shortly after local
// changes. It shares the client's in-flight latch with manual syncs, so an
// overlapping trigger is skipped rather than run twice.
type Scheduler struct {
	Client   *Client
	Interval time.Duration
	Changes  <-chan struct{}
	Debounce time.Duration
	OnResult func(SyncResult, error)
}

// Run blocks until ctx is done. It syncs once immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	debounce := s.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	s.runOnce(ctx)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.Changes:
			if pending == nil {
				pending = time.After(debounce)
			}
		case <-pending:
			pending = nil
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.Client.SyncNow(ctx)
	switch {
	case errors.Is(err, ErrSyncInFlight):
		s.Client.logf("sync skipped: another run in progress")
		return
	case err != nil:
		s.Client.logf("sync failed: %v", err)
	}
	if s.OnResult != nil {
		s.OnResult(res, err)
	}
}
