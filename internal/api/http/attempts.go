package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	auth "github.com/mind-engage/dsat-sync/internal/auth/middleware"
	"github.com/mind-engage/dsat-sync/internal/rbac"
	"github.com/mind-engage/dsat-sync/internal/remote"
)

// AttemptService is the remote attempt store as seen by the handlers.
type AttemptService interface {
	List(ctx context.Context, userID string, since int64) ([]attempt.Wire, error)
	BulkUpsert(ctx context.Context, userID string, batch []attempt.Wire) ([]string, error)
}

type listResponse struct {
	Attempts []attempt.Wire `json:"attempts"`
}

type upsertRequest struct {
	UserID   string         `json:"userId"`
	Attempts []attempt.Wire `json:"attempts"`
}

type upsertResponse struct {
	SavedIDs []string `json:"savedIds"`
}

// scopeUser resolves the user an attempts request acts on. An empty userId
// means the caller; anything else must be the caller or needs view-all.
func scopeUser(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	sub, role := auth.Caller(r.Context())
	userID := strings.TrimSpace(requested)
	if userID == "" {
		userID = sub
	}
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return "", false
	}
	if !rbac.Default().CanActFor(sub, role, userID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return userID, true
}

// GET /api/attempts?userId=...&since=<epochMs>
func ListAttemptsHandler(svc AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID, ok := scopeUser(w, r, q.Get("userId"))
		if !ok {
			return
		}
		var since int64
		if s := strings.TrimSpace(q.Get("since")); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
				return
			}
			since = n
		}
		list, err := svc.List(r.Context(), userID, since)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []attempt.Wire{}
		}
		writeJSON(w, http.StatusOK, listResponse{Attempts: list})
	}
}

// BulkUpsertHandler serves POST /api/attempts/bulk and the single-batch
// POST /api/attempts. A batch with any invalid record is rejected whole.
func BulkUpsertHandler(svc AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		userID, ok := scopeUser(w, r, req.UserID)
		if !ok {
			return
		}
		saved, err := svc.BulkUpsert(r.Context(), userID, req.Attempts)
		switch {
		case errors.Is(err, remote.ErrInvalidBatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if saved == nil {
			saved = []string{}
		}
		writeJSON(w, http.StatusOK, upsertResponse{SavedIDs: saved})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
