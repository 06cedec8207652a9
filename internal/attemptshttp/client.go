package attemptshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/mind-engage/dsat-sync/internal/attempt"
)

// Client talks to the remote attempt store over its REST contract.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens oauth2.TokenSource
	retry  RetryConfig
}

type Config struct {
	BaseURL string
	// Tokens is optional; without it requests go out unauthenticated.
	Tokens  oauth2.TokenSource
	Timeout time.Duration
	Retry   RetryConfig
	HTTP    *http.Client
}

// invalidator is implemented by token sources that can drop a rejected token.
type invalidator interface{ Invalidate() }

var ErrNoBaseURL = errors.New("attemptshttp: base URL is empty")

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("attemptshttp: base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("attemptshttp: base URL %q needs http or https", cfg.BaseURL)
	}
	h := cfg.HTTP
	if h == nil {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	r := cfg.Retry
	if r.MaxAttempts <= 0 {
		r = DefaultRetryConfig()
	}
	return &Client{base: u, http: h, tokens: cfg.Tokens, retry: r}, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op     string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

type listResponse struct {
	Attempts []json.RawMessage `json:"attempts"`
}

type upsertRequest struct {
	UserID   string         `json:"userId"`
	Attempts []attempt.Wire `json:"attempts"`
}

type upsertResponse struct {
	SavedIDs []string `json:"savedIds"`
}

// List returns the user's attempts updated after since, newest first.
func (c *Client) List(ctx context.Context, userID string, since int64) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("userId", userID)
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}
	var out listResponse
	if err := c.do(ctx, "list attempts", http.MethodGet, "/api/attempts", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Attempts == nil {
		out.Attempts = []json.RawMessage{}
	}
	return out.Attempts, nil
}

// BulkUpsert sends a batch to /api/attempts/bulk, falling back to
// POST /api/attempts when the bulk route is not available.
func (c *Client) BulkUpsert(ctx context.Context, userID string, attempts []attempt.Wire) ([]string, error) {
	body := upsertRequest{UserID: userID, Attempts: attempts}
	var out upsertResponse
	err := c.do(ctx, "bulk upsert", http.MethodPost, "/api/attempts/bulk", nil, body, &out)
	var se *StatusError
	if errors.As(err, &se) && bulkUnavailable(se.Code) {
		out = upsertResponse{}
		err = c.do(ctx, "upsert", http.MethodPost, "/api/attempts", nil, body, &out)
	}
	if err != nil {
		return nil, err
	}
	return out.SavedIDs, nil
}

func bulkUnavailable(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}

// Probe is an authenticated health check that reads nothing.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, "probe", http.MethodGet, "/api/health", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		payload = b
	}
	u := c.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}

	reauthed := false
	for try := 0; ; try++ {
		err := c.once(ctx, op, method, u.String(), payload, out)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized && !reauthed {
			if inv, ok := c.tokens.(invalidator); ok {
				inv.Invalidate()
				reauthed = true
				continue
			}
		}
		if !retryable(err) || try >= c.retry.MaxAttempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retry.backoff(try)):
		}
	}
}

func (c *Client) once(ctx context.Context, op, method, u string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s: token: %w", op, err)
		}
		tok.SetAuthHeader(req)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &StatusError{Op: op, Code: res.StatusCode, Status: res.Status, Body: string(bytes.TrimSpace(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
