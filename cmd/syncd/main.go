package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/dsat-sync/internal/api/http"
	auth "github.com/mind-engage/dsat-sync/internal/auth/middleware"
	"github.com/mind-engage/dsat-sync/internal/config"
	"github.com/mind-engage/dsat-sync/internal/db"
	"github.com/mind-engage/dsat-sync/internal/events"
	"github.com/mind-engage/dsat-sync/internal/metrics"
	"github.com/mind-engage/dsat-sync/internal/remote"
)

func main() {
	config.Load()
	cfg := config.FromEnv()

	m := metrics.New()
	opts := []remote.Option{remote.WithMetrics(m)}

	// --- Store ---
	var (
		store remote.Store
		ready func(context.Context) error
	)
	switch cfg.Store {
	case config.StoreMemory:
		store = remote.NewMemoryStore(nil)
		log.Printf("store: memory (attempts are lost on restart)")
	default:
		driver, err := db.ParseDriver(cfg.DBDriver)
		if err != nil {
			log.Fatalf("db driver: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbh, err := db.Open(ctx, driver, cfg.DBDSN)
		cancel()
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		defer dbh.Close()
		store = remote.NewSQLStore(dbh, nil)
		ready = dbh.Ready
		opts = append(opts, remote.WithNotifier(remote.NewEventLog(dbh, cfg.SiteID)))
	}

	// --- Events ---
	pub, err := events.NewPublisher(cfg.RabbitURI, cfg.RabbitExchange)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	defer pub.Close()
	if pub.Enabled() {
		opts = append(opts, remote.WithNotifier(pub))
	}

	// --- Auth ---
	users, err := auth.ParseUsers(cfg.Users)
	if err != nil {
		log.Fatalf("users: %v", err)
	}
	if cfg.AdminUser != "" && cfg.AdminPassHash != "" {
		users[cfg.AdminUser] = auth.User{Role: "admin", PassHash: cfg.AdminPassHash}
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)
	if !cfg.RequireAuth {
		log.Printf("auth: REQUIRE_AUTH is off, anonymous callers run as %q", cfg.DevRole)
	}

	handler := api.NewRouter(api.Deps{
		Attempts:    remote.NewService(store, opts...),
		Auth:        authSvc,
		Users:       users,
		RequireAuth: cfg.RequireAuth,
		DevRole:     cfg.DevRole,
		CORSOrigins: cfg.CORSOrigins,
		MaxBody:     cfg.MaxBody,
		Metrics:     m,
		Ready:       ready,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (store=%s, db=%s, auth=%v)", cfg.HTTPAddr, cfg.Store, cfg.DBDriver, cfg.RequireAuth)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
