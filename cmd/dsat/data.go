package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/dsat-sync/internal/attempt"
	"github.com/mind-engage/dsat-sync/internal/scoring"
)

func when(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List attempts, newest first, from the best available source",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			view := s.client.View()
			if _, err := view.Refresh(cmd.Context()); err != nil {
				return err
			}
			list, src, err := view.All(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No attempts found.")
				return nil
			}
			fmt.Fprintf(out, "%-38s  %-16s  %-6s  %-4s  %-20s  %7s  %7s  %s\n",
				"ID", "When", "Kind", "Mode", "Base", "RW", "Math", "Sync")
			fmt.Fprintln(out, strings.Repeat("─", 118))
			for _, a := range list {
				state := "ok"
				if a.Dirty {
					state = "dirty"
				}
				fmt.Fprintf(out, "%-38s  %-16s  %-6s  %-4s  %-20s  %7s  %7s  %s\n",
					a.ID, when(a.TS), a.Kind, a.Mode, trunc(a.BaseID, 20),
					tally(a.Sections.RW), tally(a.Sections.Math), state)
			}
			fmt.Fprintf(out, "\n%d attempts (source: %s)\n", len(list), src)
			return nil
		},
	}
}

func tally(s attempt.SectionResult) string {
	if s.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", s.Correct, s.Total)
}

func trunc(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func newScoresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show scaled scores for every local attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := clientConfig(cmd)
			if p, _ := cmd.Flags().GetString("preset"); p != "" {
				cfg.Preset = p
			}
			reg, err := registry(cfg)
			if err != nil {
				return err
			}
			if cfg.Preset != "" {
				if _, ok := reg.Get(cfg.Preset); !ok {
					return fmt.Errorf("unknown preset %q (have: %s)", cfg.Preset, strings.Join(reg.Names(), ", "))
				}
			}
			store, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No attempts found.")
				return nil
			}
			fmt.Fprintf(out, "%-16s  %-20s  %-6s  %-4s  %5s  %5s  %5s  %s\n",
				"When", "Base", "Kind", "Mode", "RW", "Math", "Total", "Preset")
			fmt.Fprintln(out, strings.Repeat("─", 84))
			for i := len(list) - 1; i >= 0; i-- {
				sc := reg.Scale(list[i], cfg.Preset)
				a := sc.Attempt
				fmt.Fprintf(out, "%-16s  %-20s  %-6s  %-4s  %5s  %5s  %5s  %s\n",
					when(a.TS), trunc(a.BaseID, 20), a.Kind, a.Mode,
					score(sc.RW), score(sc.Math), score(sc.Total), sc.Preset)
			}
			return nil
		},
	}
	cmd.Flags().String("preset", "", "Curve preset to score with (default: each attempt's own)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Fill defaults on attempts written by older versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, clientConfig(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.MigrateSchema(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d\n", n)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every local attempt as a JSON export (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, clientConfig(cmd))
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := store.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d to %s\n", n, args[0])
			}
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge attempts from a JSON export into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := openStore(cmd, clientConfig(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			res, err := store.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, dropped %d\n", res.Added, res.Skipped, res.Dropped)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every local attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to clear without --yes")
			}
			store, err := openStore(cmd, clientConfig(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deletion")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List scoring curve presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry(clientConfig(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				p, _ := reg.Get(name)
				fmt.Fprintf(out, "%s\n  rw   %s\n  math %s\n", name, points(p.RW), points(p.Math))
			}
			return nil
		},
	}
}

func points(c scoring.Curve) string {
	parts := make([]string, 0, len(c))
	for _, p := range c {
		parts = append(parts, fmt.Sprintf("%g→%g", p.X, p.Y))
	}
	return strings.Join(parts, " ")
}
