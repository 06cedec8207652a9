package attemptshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Multiplier: 2}
}

func newClient(t *testing.T, srv *httptest.Server, tokens oauth2.TokenSource) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, Tokens: tokens, Retry: fastRetry(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func wire(id string) attempt.Wire {
	return attempt.Wire{ID: id, TS: 1, BaseID: "b", Kind: attempt.KindBase, Sections: &attempt.WireSections{}}
}

func TestListSendsCursorAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/attempts" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("userId"); got != "u1" {
			t.Errorf("userId = %q", got)
		}
		if got := r.URL.Query().Get("since"); got != "1234" {
			t.Errorf("since = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q", got)
		}
		_, _ = w.Write([]byte(`{"attempts":[{"id":"a","ts":5},{"id":"b","ts":4}]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}))
	raws, err := c.List(context.Background(), "u1", 1234)
	if err != nil {
		t.Fatal(err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d records", len(raws))
	}
}

func TestListOmitsZeroSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("since") {
			t.Errorf("since should be omitted")
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	raws, err := newClient(t, srv, nil).List(context.Background(), "u1", 0)
	if err != nil || raws == nil || len(raws) != 0 {
		t.Fatalf("raws=%v err=%v", raws, err)
	}
}

func TestBulkUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/attempts/bulk" {
			http.NotFound(w, r)
			return
		}
		var in upsertRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		if in.UserID != "u1" || len(in.Attempts) != 2 {
			t.Errorf("body = %+v", in)
		}
		_ = json.NewEncoder(w).Encode(upsertResponse{SavedIDs: []string{"a"}})
	}))
	defer srv.Close()

	ids, err := newClient(t, srv, nil).BulkUpsert(context.Background(), "u1", []attempt.Wire{wire("a"), wire("b")})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestBulkFallsBackToSingleBatch(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/attempts/bulk" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(upsertResponse{SavedIDs: []string{"a", "b"}})
	}))
	defer srv.Close()

	ids, err := newClient(t, srv, nil).BulkUpsert(context.Background(), "u1", []attempt.Wire{wire("a"), wire("b")})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || len(paths) != 2 || paths[1] != "/api/attempts" {
		t.Fatalf("ids=%v paths=%v", ids, paths)
	}
}

func TestBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "attempt 0: missing id", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, nil).BulkUpsert(context.Background(), "u1", []attempt.Wire{{}})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("want 400 StatusError, got %v", err)
	}
	if se.Body != "attempt 0: missing id" {
		t.Fatalf("body = %q", se.Body)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := newClient(t, srv, nil).Probe(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestRetriesGiveUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newClient(t, srv, nil).Probe(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("got %v", err)
	}
}

type rotatingTokens struct {
	n           atomic.Int32
	invalidated atomic.Int32
}

func (r *rotatingTokens) Token() (*oauth2.Token, error) {
	if r.invalidated.Load() > 0 {
		return &oauth2.Token{AccessToken: "fresh"}, nil
	}
	r.n.Add(1)
	return &oauth2.Token{AccessToken: "stale"}, nil
}

func (r *rotatingTokens) Invalidate() { r.invalidated.Add(1) }

func TestUnauthorizedRefetchesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &rotatingTokens{}
	if err := newClient(t, srv, tokens).Probe(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tokens.invalidated.Load() != 1 {
		t.Fatalf("invalidated %d times", tokens.invalidated.Load())
	}
}

func TestNewValidatesBaseURL(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoBaseURL) {
		t.Fatalf("got %v", err)
	}
	if _, err := New(Config{BaseURL: "ftp://x"}); err == nil {
		t.Fatalf("ftp should be rejected")
	}
}
