package remote

import (
	"context"
	"encoding/json"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

// InProcess exposes a Service to the sync client without HTTP. It serves both
// as the client's remote and as its preferred read adapter.
type InProcess struct {
	Service *Service
}

func (p InProcess) List(ctx context.Context, userID string, since int64) ([]json.RawMessage, error) {
	list, err := p.Service.List(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(list))
	for _, w := range list {
		raw, err := json.Marshal(w)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (p InProcess) BulkUpsert(ctx context.Context, userID string, batch []attempt.Wire) ([]string, error) {
	return p.Service.BulkUpsert(ctx, userID, batch)
}

func (p InProcess) Probe(context.Context) error { return nil }

func (p InProcess) ListAttempts(ctx context.Context, userID string) ([]attempt.Attempt, error) {
	list, err := p.Service.List(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]attempt.Attempt, 0, len(list))
	for _, w := range list {
		out = append(out, w.ToAttempt())
	}
	return out, nil
}
