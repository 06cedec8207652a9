package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

func newTestClient(local *fakeLocal, remote *fakeRemote) *Client {
	c := New(local, remote, "u1", clockAt(1_000))
	c.Log = nil
	return c
}

func TestPushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 500, 500)}}
	remote := newFakeRemote(5_000)
	c := newTestClient(local, remote)

	res, err := c.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 1 || len(res.SavedIDs) != 1 {
		t.Fatalf("first push = %+v", res)
	}
	a, _ := local.get("a")
	if a.Dirty || a.RemoteID != "a" || a.LastPushedAt != 1_000 {
		t.Fatalf("after push: dirty=%v remote=%q lastPushed=%d", a.Dirty, a.RemoteID, a.LastPushedAt)
	}

	res, err = c.Push(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 0 {
		t.Fatalf("second push pushed %d", res.Pushed)
	}
	if remote.pushes != 1 {
		t.Fatalf("remote saw %d pushes", remote.pushes)
	}
}

func TestPushFailureKeepsDirty(t *testing.T) {
	ctx := context.Background()
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 500, 500)}}
	remote := newFakeRemote(5_000)
	remote.pushErr = errors.New("connection refused")
	c := newTestClient(local, remote)

	if _, err := c.Push(ctx); !errors.Is(err, remote.pushErr) {
		t.Fatalf("want wrapped push error, got %v", err)
	}
	a, _ := local.get("a")
	if !a.Dirty || a.RemoteID != "" || a.LastPushedAt != 0 {
		t.Fatalf("failed push must not touch sync metadata: %+v", a)
	}

	remote.pushErr = nil
	res, err := c.Push(ctx)
	if err != nil || res.Pushed != 1 {
		t.Fatalf("retry = %+v, %v", res, err)
	}
	if len(remote.batches[0]) != 1 || remote.batches[0][0].ID != "a" {
		t.Fatalf("retry should resend the same set")
	}
}

func TestPushAssignsMissingID(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("", 777, 777)}}
	remote := newFakeRemote(0)
	c := newTestClient(local, remote)

	if _, err := c.Push(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := attempt.CompositeID("u1", "set-1", attempt.KindBase, 777)
	a, ok := local.get(want)
	if !ok {
		t.Fatalf("local record not renamed to %s: %+v", want, local.list)
	}
	if a.Dirty || a.RemoteID != want {
		t.Fatalf("got %+v", a)
	}
	if _, ok := remote.records[want]; !ok {
		t.Fatalf("remote missing %s", want)
	}
}

func TestPushIncludesNeverConfirmed(t *testing.T) {
	legacy := rec("legacy", 100, 100)
	legacy.Dirty = false
	synced := rec("synced", 200, 200)
	synced.Dirty, synced.RemoteID, synced.LastPushedAt = false, "synced", 300

	local := &fakeLocal{list: []attempt.Attempt{legacy, synced}}
	remote := newFakeRemote(0)
	res, err := newTestClient(local, remote).Push(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Pushed != 1 || remote.batches[0][0].ID != "legacy" {
		t.Fatalf("pushed %+v", remote.batches)
	}
}

func TestPushKeepsRecordEditedInFlight(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 500, 500)}}
	remote := newFakeRemote(0)
	remote.onPush = func() {
		local.mu.Lock()
		local.list[0].UpdatedAt = 900
		local.mu.Unlock()
	}
	if _, err := newTestClient(local, remote).Push(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a, _ := local.get("a"); !a.Dirty {
		t.Fatalf("record edited during push must stay dirty")
	}
}

func TestPushMarkFailureReported(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 500, 500)}, failOn: 2}
	remote := newFakeRemote(0)
	if _, err := newTestClient(local, remote).Push(context.Background()); err == nil {
		t.Fatalf("expected error when marking fails")
	}
	if a, _ := local.get("a"); !a.Dirty {
		t.Fatalf("nothing should be cleared")
	}
}

func TestPullConvergence(t *testing.T) {
	l := rec("L", 50, 100)
	l.RemoteID, l.Dirty = "R1", false
	local := &fakeLocal{list: []attempt.Attempt{l}}

	r := rec("R1", 50, 200)
	r.Sections.RW.Correct = 25
	remote := newFakeRemote(0)
	remote.seed(r.ToWire())

	res, err := newTestClient(local, remote).Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced != 1 || res.Added != 0 || res.Since != 100 {
		t.Fatalf("pull = %+v", res)
	}
	got, _ := local.get("L")
	if got.Sections.RW.Correct != 25 || got.UpdatedAt != 200 || got.Dirty || got.RemoteID != "R1" {
		t.Fatalf("local after pull = %+v", got)
	}
}

func TestPullKeepsNewerLocal(t *testing.T) {
	l := rec("L", 50, 300)
	l.RemoteID = "R1"
	local := &fakeLocal{list: []attempt.Attempt{l}}
	remote := newFakeRemote(0)
	remote.seed(rec("R1", 50, 200).ToWire())

	res, err := newTestClient(local, remote).PullSince(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced != 0 || res.Added != 0 {
		t.Fatalf("pull = %+v", res)
	}
	if got, _ := local.get("L"); !got.Dirty || got.UpdatedAt != 300 {
		t.Fatalf("newer local copy must survive: %+v", got)
	}
}

func TestPullTieGoesToRemote(t *testing.T) {
	l := rec("L", 50, 200)
	l.RemoteID = "R1"
	local := &fakeLocal{list: []attempt.Attempt{l}}
	r := rec("R1", 50, 200)
	r.Title = "Renamed"
	remote := newFakeRemote(0)
	remote.seed(r.ToWire())

	res, err := newTestClient(local, remote).PullSince(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := local.get("L"); res.Replaced != 1 || got.Title != "Renamed" {
		t.Fatalf("tie should take remote copy: %+v", got)
	}
}

func TestPullMatchesUnboundByCompositeKey(t *testing.T) {
	l := rec("local-id", 50, 60)
	local := &fakeLocal{list: []attempt.Attempt{l}}
	r := rec("server-id", 50, 80)
	remote := newFakeRemote(0)
	remote.seed(r.ToWire())

	res, err := newTestClient(local, remote).PullSince(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 0 || res.Replaced != 1 {
		t.Fatalf("pull = %+v", res)
	}
	got, ok := local.get("local-id")
	if !ok || got.RemoteID != "server-id" || got.Dirty {
		t.Fatalf("got %+v", got)
	}
	if len(local.list) != 1 {
		t.Fatalf("composite match must not duplicate: %d records", len(local.list))
	}
}

func TestPullInsertsCleanAndDropsMalformed(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote(0)
	remote.seed(rec("n1", 10, 10).ToWire())
	remote.extra = []json.RawMessage{
		json.RawMessage(`{"id": "no-ts"}`),
		json.RawMessage(`"nope"`),
	}

	res, err := newTestClient(local, remote).Pull(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Added != 1 || res.Dropped != 2 {
		t.Fatalf("pull = %+v", res)
	}
	got, _ := local.get("n1")
	if got.Dirty || got.RemoteID != "n1" || got.LastPushedAt != 1_000 {
		t.Fatalf("inserted record = %+v", got)
	}
}

func TestPullDefaultCursor(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 100, 700), rec("b", 650, 0)}}
	remote := newFakeRemote(0)
	if _, err := newTestClient(local, remote).Pull(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(remote.lists) != 1 || remote.lists[0] != 700 {
		t.Fatalf("since = %v", remote.lists)
	}
}

func TestPullErrorLeavesLocal(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 1, 1)}}
	remote := newFakeRemote(0)
	remote.listErr = errors.New("503")
	if _, err := newTestClient(local, remote).Pull(context.Background()); !errors.Is(err, remote.listErr) {
		t.Fatalf("got %v", err)
	}
	if local.updates != 0 {
		t.Fatalf("failed pull must not write locally")
	}
}

func TestMissingConfigShortCircuits(t *testing.T) {
	ctx := context.Background()
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 1, 1)}}
	remote := newFakeRemote(0)

	noUser := New(local, remote, "", nil)
	if _, err := noUser.Push(ctx); !errors.Is(err, ErrNoUserID) {
		t.Fatalf("push: %v", err)
	}
	if _, err := noUser.Pull(ctx); !errors.Is(err, ErrNoUserID) {
		t.Fatalf("pull: %v", err)
	}
	if st := noUser.TestConnection(ctx); st.OK || st.Error == "" {
		t.Fatalf("status = %+v", st)
	}

	noRemote := New(local, nil, "u1", nil)
	if _, err := noRemote.SyncNow(ctx); !errors.Is(err, ErrNoRemote) {
		t.Fatalf("sync: %v", err)
	}
	if remote.pushes != 0 || len(remote.lists) != 0 || local.updates != 0 {
		t.Fatalf("nothing should have been called")
	}
}

func TestSyncNowRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 1, 1)}}
	remote := newFakeRemote(0)
	remote.inPush = make(chan struct{})
	remote.release = make(chan struct{})
	c := newTestClient(local, remote)

	done := make(chan error, 1)
	go func() {
		_, err := c.SyncNow(ctx)
		done <- err
	}()
	<-remote.inPush

	if !c.Running() {
		t.Fatalf("client should report a running sync")
	}
	if _, err := c.SyncNow(ctx); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("second sync: %v", err)
	}
	if _, err := c.Pull(ctx); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("pull during sync: %v", err)
	}
	close(remote.release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not finish")
	}
	if c.Running() {
		t.Fatalf("latch not released")
	}
}

func TestSyncNowSkipsPullAfterFailedPush(t *testing.T) {
	local := &fakeLocal{list: []attempt.Attempt{rec("a", 1, 1)}}
	remote := newFakeRemote(0)
	remote.pushErr = errors.New("timeout")
	if _, err := newTestClient(local, remote).SyncNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(remote.lists) != 0 {
		t.Fatalf("pull ran after failed push")
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	ctx := context.Background()
	orig := rec("a", 500, 500)
	local := &fakeLocal{list: []attempt.Attempt{orig}}
	remote := newFakeRemote(5_000)
	c := newTestClient(local, remote)

	res, err := c.SyncNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Push.Pushed != 1 || res.Pull.Replaced != 1 {
		t.Fatalf("sync = %s", res)
	}

	got, _ := local.get("a")
	if got.Dirty || got.UpdatedAt != 5_000 {
		t.Fatalf("got %+v", got)
	}
	// only sync metadata may differ
	got.Dirty, got.RemoteID, got.LastPushedAt, got.UpdatedAt = orig.Dirty, orig.RemoteID, orig.LastPushedAt, orig.UpdatedAt
	if a, b := mustJSON(t, got), mustJSON(t, orig); a != b {
		t.Fatalf("round trip changed content:\n got %s\nwant %s", a, b)
	}

	res, err = c.SyncNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Push.Pushed != 0 || res.Pull.Added+res.Pull.Replaced != 0 {
		t.Fatalf("second sync should be a no-op: %s", res)
	}
}

func TestTestConnection(t *testing.T) {
	remote := newFakeRemote(0)
	c := newTestClient(&fakeLocal{}, remote)
	if st := c.TestConnection(context.Background()); !st.OK {
		t.Fatalf("status = %+v", st)
	}
	remote.probeErr = errors.New("401 Unauthorized")
	if st := c.TestConnection(context.Background()); st.OK || st.Error != "401 Unauthorized" {
		t.Fatalf("status = %+v", st)
	}
}

func TestMerge(t *testing.T) {
	bound := rec("x", 10, 10)
	bound.RemoteID = "x"
	list, added, replaced := Merge([]attempt.Attempt{bound}, []attempt.Attempt{rec("y", 20, 20)}, "u1", 99)
	if added != 1 || replaced != 0 || len(list) != 2 {
		t.Fatalf("added=%d replaced=%d len=%d", added, replaced, len(list))
	}
	if list[1].RemoteID != "y" || list[1].LastPushedAt != 99 || list[1].Dirty {
		t.Fatalf("inserted = %+v", list[1])
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
