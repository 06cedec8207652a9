package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncx "github.com/mind-engage/dsat-sync/internal/sync"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send unsynced attempts to the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			res, err := s.client.Push(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d\n", res.Pushed)
			return nil
		},
	}
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch attempts from the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			var res syncx.PullResult
			if cmd.Flags().Changed("since") {
				since, _ := cmd.Flags().GetInt64("since")
				res, err = s.client.PullSince(cmd.Context(), since)
			} else {
				res, err = s.client.Pull(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled +%d ~%d\n", res.Added, res.Replaced)
			if res.Dropped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %d malformed\n", res.Dropped)
			}
			return nil
		},
	}
	cmd.Flags().Int64("since", 0, "Cursor in epoch ms (default: newest local attempt; 0 fetches everything)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push, then pull",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			res, err := s.client.SyncNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically and after local changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			interval, _ := cmd.Flags().GetDuration("interval")
			if !cmd.Flags().Changed("interval") {
				interval = clientConfig(cmd).Interval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			sch := &syncx.Scheduler{
				Client:   s.client,
				Interval: interval,
				Changes:  s.store.Changed(),
				OnResult: func(res syncx.SyncResult, err error) {
					if err != nil {
						fmt.Fprintf(out, "%s sync failed: %v\n", time.Now().Format(time.TimeOnly), err)
						return
					}
					fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), res)
				},
			}
			fmt.Fprintf(out, "watching every %s (ctrl-c to stop)\n", interval)
			if err := sch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Duration("interval", syncx.DefaultInterval, "Time between background syncs")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local counts and server connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			total, dirty, err := s.store.Count(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d attempts, %d unsynced\n", total, dirty)

			user := s.client.UserID
			if user == "" {
				user = "(none)"
			}
			fmt.Fprintf(out, "user: %s\n", user)

			st := s.client.TestConnection(cmd.Context())
			if st.OK {
				fmt.Fprintln(out, "remote: ok")
			} else {
				fmt.Fprintf(out, "remote: offline (%s)\n", st.Error)
			}
			return nil
		},
	}
}
