package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/mind-engage/dsat-sync/internal/attemptshttp"
	"github.com/mind-engage/dsat-sync/internal/config"
	"github.com/mind-engage/dsat-sync/internal/db"
	"github.com/mind-engage/dsat-sync/internal/identity"
	"github.com/mind-engage/dsat-sync/internal/localstore"
	"github.com/mind-engage/dsat-sync/internal/remote"
	"github.com/mind-engage/dsat-sync/internal/scoring"
	syncx "github.com/mind-engage/dsat-sync/internal/sync"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dsat",
		Short:         "Record, score and sync digital SAT practice attempts",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.Load()
		},
	}

	pf := root.PersistentFlags()
	pf.String("db", "", "Path to the local attempts database (overrides DSAT_DB)")
	pf.String("base-url", "", "Sync server base URL (overrides DSAT_BASE_URL)")
	pf.String("user", "", "User id to sync as (overrides DSAT_USER; defaults to the token subject)")
	pf.String("token", "", "Bearer token (overrides DSAT_TOKEN)")
	pf.String("curves", "", "JSON file with extra curve presets (overrides DSAT_CURVES)")

	root.AddCommand(
		newRecordCmd(),
		newPushCmd(),
		newPullCmd(),
		newSyncCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newListCmd(),
		newScoresCmd(),
		newMigrateCmd(),
		newExportCmd(),
		newImportCmd(),
		newClearCmd(),
		newPresetsCmd(),
	)
	return root
}

// clientConfig is the env configuration with persistent flags applied.
func clientConfig(cmd *cobra.Command) config.Client {
	cfg := config.ClientFromEnv()
	override := func(name string, dst *string) {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			*dst = v
		}
	}
	override("db", &cfg.DBPath)
	override("base-url", &cfg.BaseURL)
	override("user", &cfg.UserID)
	override("token", &cfg.Token)
	override("curves", &cfg.CurvesFile)
	return cfg
}

func openStore(cmd *cobra.Command, cfg config.Client) (*localstore.Store, error) {
	path := cfg.DBPath
	if path == "" {
		p, err := localstore.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		path = p
	}
	s, err := localstore.Open(cmd.Context(), path, localstore.WithLogger(newLogger(cmd, "[store] ")))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func registry(cfg config.Client) (*scoring.Registry, error) {
	reg := scoring.NewRegistry()
	if cfg.CurvesFile != "" {
		if _, err := reg.LoadFile(cfg.CurvesFile); err != nil {
			return nil, fmt.Errorf("load curves: %w", err)
		}
	}
	return reg, nil
}

func tokenSource(ctx context.Context, cfg config.Client) oauth2.TokenSource {
	switch {
	case cfg.Token != "":
		return identity.NewProvider(identity.Static(cfg.Token))
	case cfg.Username != "" && cfg.BaseURL != "":
		return identity.NewProvider(&identity.PasswordSource{
			BaseURL:  cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	case cfg.TokenURL != "" && cfg.ClientID != "":
		return identity.NewProvider(identity.ClientCredentials(ctx, cfg.TokenURL, cfg.ClientID, cfg.ClientSecret))
	}
	return nil
}

// session bundles what the sync commands need. close releases the local
// store and, for an in-process remote, its database.
type session struct {
	store  *localstore.Store
	client *syncx.Client
	close  func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg := clientConfig(cmd)
	store, err := openStore(cmd, cfg)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { store.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	userID := cfg.UserID
	if userID == "" && cfg.Token != "" {
		if sub, err := identity.SubjectFromToken(cfg.Token); err == nil {
			userID = sub
		}
	}
	if userID == "" && cfg.Username != "" {
		userID = cfg.Username
	}

	c := syncx.New(store, nil, userID, nil)
	c.Log = newLogger(cmd, "[sync] ")

	switch {
	case cfg.RemoteDriver != "":
		drv, err := db.ParseDriver(cfg.RemoteDriver)
		if err != nil {
			closeAll()
			return nil, err
		}
		dbh, err := db.Open(cmd.Context(), drv, cfg.RemoteDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		closers = append(closers, func() { dbh.Close() })
		in := remote.InProcess{Service: remote.NewService(remote.NewSQLStore(dbh, nil))}
		c.Remote = in
		c.Adapter = in
	case cfg.BaseURL != "":
		rc, err := attemptshttp.New(attemptshttp.Config{
			BaseURL: cfg.BaseURL,
			Tokens:  tokenSource(cmd.Context(), cfg),
			Timeout: cfg.Timeout,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		c.Remote = rc
	}
	return &session{store: store, client: c, close: closeAll}, nil
}

func newLogger(cmd *cobra.Command, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cmd != nil {
		w = cmd.ErrOrStderr()
	}
	return log.New(w, prefix, log.LstdFlags)
}
