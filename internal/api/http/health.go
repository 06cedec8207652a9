package http

import (
	"context"
	"net/http"

	auth "github.com/mind-engage/dsat-sync/internal/auth/middleware"
)

// GET /api/health, used by clients to test connectivity and credentials.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.Caller(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": sub})
	}
}

// GET /api/me
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, role := auth.Caller(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"sub": sub, "role": role})
	}
}

// GET /readyz
func ReadyHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
