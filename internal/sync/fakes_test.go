package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

type fakeLocal struct {
	mu      sync.Mutex
	list    []attempt.Attempt
	updates int
	failOn  int // fail the n-th Update (1-based); 0 never
}

func (f *fakeLocal) Load(context.Context) ([]attempt.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.list), nil
}

func (f *fakeLocal) SaveAll(_ context.Context, list []attempt.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = clone(list)
	return nil
}

func (f *fakeLocal) Update(_ context.Context, fn func([]attempt.Attempt) ([]attempt.Attempt, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failOn == f.updates {
		return errors.New("disk error")
	}
	next, err := fn(clone(f.list))
	if err != nil {
		return err
	}
	f.list = clone(next)
	return nil
}

func (f *fakeLocal) get(id string) (attempt.Attempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.list {
		if a.ID == id {
			return a, true
		}
	}
	return attempt.Attempt{}, false
}

func clone(in []attempt.Attempt) []attempt.Attempt {
	out := make([]attempt.Attempt, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// fakeRemote behaves like the remote store: ignore-if-not-newer upserts and
// a server clock stamped onto saved records.
type fakeRemote struct {
	mu       sync.Mutex
	records  map[string]attempt.Wire
	clock    int64
	extra    []json.RawMessage
	pushErr  error
	listErr  error
	probeErr error
	pushes   int
	lists    []int64
	batches  [][]attempt.Wire
	inPush   chan struct{}
	release  chan struct{}
	onPush   func()
}

func newFakeRemote(clock int64) *fakeRemote {
	return &fakeRemote{records: map[string]attempt.Wire{}, clock: clock}
}

func (f *fakeRemote) seed(w attempt.Wire) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[w.ID] = w
}

func (f *fakeRemote) List(_ context.Context, _ string, since int64) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, since)
	if f.listErr != nil {
		return nil, f.listErr
	}
	ws := make([]attempt.Wire, 0, len(f.records))
	for _, w := range f.records {
		if w.Stamp() > since {
			ws = append(ws, w)
		}
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].Stamp() > ws[j].Stamp() })
	out := make([]json.RawMessage, 0, len(ws)+len(f.extra))
	for _, w := range ws {
		b, _ := json.Marshal(w)
		out = append(out, b)
	}
	return append(out, f.extra...), nil
}

func (f *fakeRemote) BulkUpsert(_ context.Context, userID string, in []attempt.Wire) ([]string, error) {
	if f.inPush != nil {
		f.inPush <- struct{}{}
		<-f.release
	}
	if f.onPush != nil {
		f.onPush()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	f.batches = append(f.batches, in)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	var saved []string
	for _, w := range in {
		if cur, ok := f.records[w.ID]; ok && w.Stamp() <= cur.Stamp() {
			continue
		}
		w.UserID = userID
		if w.UpdatedAt < f.clock {
			w.UpdatedAt = f.clock
		}
		f.records[w.ID] = w
		saved = append(saved, w.ID)
	}
	return saved, nil
}

func (f *fakeRemote) Probe(context.Context) error { return f.probeErr }

type fakeAdapter struct {
	list []attempt.Attempt
	err  error
}

func (f fakeAdapter) ListAttempts(context.Context, string) ([]attempt.Attempt, error) {
	return f.list, f.err
}

func clockAt(ms int64) Clock { return func() time.Time { return time.UnixMilli(ms) } }

func rec(id string, ts, updated int64) attempt.Attempt {
	return attempt.Attempt{
		ID: id, TS: ts, UpdatedAt: updated, UserID: "u1", BaseID: "set-1", Title: "Set 1",
		Kind: attempt.KindBase, Mode: attempt.ModeFull, CurvePreset: "default",
		Sections: attempt.Sections{
			RW:   attempt.SectionResult{Correct: 20, Total: 27},
			Math: attempt.SectionResult{Correct: 15, Total: 22},
		},
		Skills:  map[string]attempt.Tally{"alg": {Correct: 3, Total: 4}},
		Version: attempt.SchemaVersion,
		Dirty:   true,
	}
}
