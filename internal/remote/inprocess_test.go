package remote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/localstore"
	syncx "github.com/mind-engage/dsat-sync/internal/sync"
)

func openLocal(t *testing.T) *localstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:local%d?mode=memory&cache=shared", dbSeq.Add(1))
	s, err := localstore.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInProcessRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(fixedClock(10)))
	remote := InProcess{Service: svc}
	now := func() time.Time { return time.UnixMilli(1_000) }

	deviceA := openLocal(t)
	a := wire("a1", 500, 500).ToAttempt()
	a.RemoteID = ""
	a.Dirty = true
	require.NoError(t, deviceA.Append(ctx, a))

	clientA := syncx.New(deviceA, remote, "u1", now)
	res, err := clientA.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.Pushed)

	deviceB := openLocal(t)
	clientB := syncx.New(deviceB, remote, "u1", now)
	clientB.Adapter = remote
	pulled, err := clientB.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pulled.Added)

	list, err := deviceB.Load(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].RemoteID)
	assert.False(t, list[0].Dirty)
	assert.Equal(t, 20, list[0].Sections.RW.Correct)

	listing, err := clientB.Sources().List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "adapter", listing.Source)
	require.Len(t, listing.Attempts, 1)
	assert.Equal(t, attempt.KindBase, listing.Attempts[0].Kind)
}
