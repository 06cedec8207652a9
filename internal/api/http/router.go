package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/dsat-sync/internal/auth/middleware"
	"github.com/mind-engage/dsat-sync/internal/metrics"
	"github.com/mind-engage/dsat-sync/internal/rbac"
)

type Deps struct {
	Attempts AttemptService
	Auth     *auth.AuthService
	// Users enables POST /auth/login when non-empty.
	Users       auth.Users
	RequireAuth bool
	DevRole     string
	CORSOrigins []string
	MaxBody     int64
	Metrics     *metrics.Metrics
	Ready       func(context.Context) error
}

func NewRouter(d Deps) http.Handler {
	if d.MaxBody <= 0 {
		d.MaxBody = 2 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", ReadyHandler(d.Ready))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	if len(d.Users) > 0 {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))
	}

	r.Route("/api", func(pr chi.Router) {
		if d.RequireAuth {
			pr.Use(auth.JWTMiddleware(d.Auth))
		} else {
			pr.Use(auth.OptionalJWT(d.Auth, d.DevRole))
		}
		pr.Use(middleware.RequestSize(d.MaxBody))

		pr.Get("/health", HealthHandler())
		pr.Get("/me", MeHandler())

		pr.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).
			Get("/attempts", ListAttemptsHandler(d.Attempts))
		pr.With(rbac.Require(rbac.PermSave)).
			Post("/attempts/bulk", BulkUpsertHandler(d.Attempts))
		pr.With(rbac.Require(rbac.PermSave)).
			Post("/attempts", BulkUpsertHandler(d.Attempts))
	})
	return r
}

// instrument records request latency by route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			m.Request(r.Method, route, code, start)
		})
	}
}
