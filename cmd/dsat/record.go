package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/dsat-sync/internal/recorder"
)

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <session.json>",
		Short: "Record a finished practice session as an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var s recorder.Session
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("parse session: %w", err)
			}

			cfg := clientConfig(cmd)
			if s.UserID == "" {
				s.UserID = cfg.UserID
			}
			reg, err := registry(cfg)
			if err != nil {
				return err
			}
			store, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			a, err := recorder.New(store).Record(cmd.Context(), s)
			if err != nil {
				return err
			}
			sc := reg.Scale(a, cfg.Preset)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recorded %s (%s, %s)\n", a.ID, a.Kind, a.Mode)
			fmt.Fprintf(out, "  rw   %d/%d  %s\n", a.Sections.RW.Correct, a.Sections.RW.Total, score(sc.RW))
			fmt.Fprintf(out, "  math %d/%d  %s\n", a.Sections.Math.Correct, a.Sections.Math.Total, score(sc.Math))
			if sc.Total != nil {
				fmt.Fprintf(out, "  total %d (%s)\n", *sc.Total, sc.Preset)
			}
			return nil
		},
	}
}

func score(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
