package syncx

import (
	"context"
	"fmt"
)

type SyncResult struct {
	Push PushResult `json:"push"`
	Pull PullResult `json:"pull"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("pushed %d, pulled +%d ~%d", r.Push.Pushed, r.Pull.Added, r.Pull.Replaced)
}

// SyncNow pushes, then pulls. Pushing first keeps a freshly recorded attempt
// from being overwritten by a stale pull. A call made while another sync is
// running returns ErrSyncInFlight. A failed push skips the pull.
func (c *Client) SyncNow(ctx context.Context) (SyncResult, error) {
	release, err := c.acquire()
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	var res SyncResult
	if res.Push, err = c.push(ctx); err != nil {
		return res, err
	}
	res.Pull, err = c.pull(ctx, -1)
	return res, err
}

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TestConnection probes the remote store without touching local data.
func (c *Client) TestConnection(ctx context.Context) ConnectionStatus {
	if err := c.ready(); err != nil {
		return ConnectionStatus{Error: err.Error()}
	}
	if err := c.Remote.Probe(ctx); err != nil {
		return ConnectionStatus{Error: err.Error()}
	}
	return ConnectionStatus{OK: true}
}
