package syncx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

type Clock func() time.Time

// Local is the device store the client reconciles.
type Local interface {
	Load(ctx context.Context) ([]attempt.Attempt, error)
	SaveAll(ctx context.Context, list []attempt.Attempt) error
	Update(ctx context.Context, fn func([]attempt.Attempt) ([]attempt.Attempt, error)) error
}

// Remote is the user-scoped remote attempt store. List returns raw records so
// that normalization happens in one place.
type Remote interface {
	List(ctx context.Context, userID string, since int64) ([]json.RawMessage, error)
	BulkUpsert(ctx context.Context, userID string, attempts []attempt.Wire) ([]string, error)
	Probe(ctx context.Context) error
}

// Adapter is an optional in-process source of attempts, preferred over REST
// for reads.
type Adapter interface {
	ListAttempts(ctx context.Context, userID string) ([]attempt.Attempt, error)
}

var (
	ErrNoUserID     = errors.New("sync: no user id configured")
	ErrNoRemote     = errors.New("sync: no remote configured")
	ErrSyncInFlight = errors.New("sync: already running")

	errNoChange = errors.New("no change")
)

// Client keeps the local store and the remote store eventually consistent.
// Build one per signed-in user and drop it when the user changes.
type Client struct {
	Local   Local
	Remote  Remote
	Adapter Adapter
	UserID  string
	Now     Clock
	Log     *log.Logger

	running atomic.Bool
}

func New(local Local, remote Remote, userID string, now Clock) *Client {
	if now == nil {
		now = time.Now
	}
	return &Client{
		Local:  local,
		Remote: remote,
		UserID: userID,
		Now:    now,
		Log:    log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

func (c *Client) ready() error {
	if c.UserID == "" {
		return ErrNoUserID
	}
	if c.Remote == nil {
		return ErrNoRemote
	}
	return nil
}

func (c *Client) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log.Printf(format, args...)
	}
}

// acquire takes the in-flight latch shared by every mutating entry point.
func (c *Client) acquire() (release func(), err error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInFlight
	}
	return func() { c.running.Store(false) }, nil
}

// Running reports whether a push, pull or sync is in progress.
func (c *Client) Running() bool { return c.running.Load() }

func (c *Client) update(ctx context.Context, fn func([]attempt.Attempt) ([]attempt.Attempt, error)) error {
	err := c.Local.Update(ctx, fn)
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}
