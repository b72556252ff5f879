package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chazu/substitute/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [build-id]",
	Short: "List recorded builds, or the sites of one build",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPlan(cmd)
		if err != nil {
			return err
		}
		db, err := store.Open(p.CachePath())
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("build id %q: %w", args[0], err)
			}
			b, err := db.Build(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "build\t%s\nmode\t%s\nimage\t%s\ntook\t%s\n\n", b.ID, b.Mode, b.Artifact.Short(), b.Finished.Sub(b.Started).Round(time.Millisecond))
			for _, s := range b.Sites {
				fmt.Fprintf(w, "%s.%s@%d\t%s %s\trule %d\t%d steps\n", s.Class, s.Method, s.Index, s.Kind, s.Member, s.Rule, s.Steps)
			}
			for _, reason := range b.Skipped {
				fmt.Fprintf(w, "skipped\t%s\n", reason)
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		builds, err := db.Builds(ctx, p.Project.Name, limit)
		if err != nil {
			return err
		}
		for _, b := range builds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Finished.Format(time.RFC3339), b.Mode, b.Artifact.Short())
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "number of builds to list (0 for all)")
}
