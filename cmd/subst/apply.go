package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/substitute/artifact"
	"github.com/chazu/substitute/plan"
	"github.com/chazu/substitute/store"
	"github.com/chazu/substitute/subst"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the plan's substitutions and write the rewritten image",
	Long: `Compiles the plan's classes, applies its substitutions and writes the
resulting image to the plan's output file. The image and a record of every
rewritten site are added to the build cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPlan(cmd)
		if err != nil {
			return err
		}
		noCache, _ := cmd.Flags().GetBool("no-cache")
		return apply(cmd.Context(), cmd.OutOrStdout(), p, !noCache)
	},
}

func init() {
	applyCmd.Flags().Bool("no-cache", false, "do not record the build in the cache")
}

// build compiles p and applies its substitution without installing it.
func build(ctx context.Context, p *plan.Plan) (*plan.Program, *subst.Result, error) {
	prog, err := p.Compile(nil)
	if err != nil {
		return nil, nil, err
	}
	res, err := prog.Substitution.Build(ctx, prog.Classes)
	if err != nil {
		return nil, nil, err
	}
	return prog, res, nil
}

func apply(ctx context.Context, out io.Writer, p *plan.Plan, cache bool) error {
	started := time.Now()
	prog, res, err := build(ctx, p)
	if err != nil {
		return err
	}
	res.Install()

	data, hash, err := artifact.Encode(artifact.Snapshot(prog.Classes, p.Project.Name))
	if err != nil {
		return err
	}
	path := p.OutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}

	sites := 0
	for _, rm := range res.Methods {
		sites += len(rm.Sites)
	}
	fmt.Fprintf(out, "rewrote %d sites in %d methods", sites, len(res.Methods))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, ", skipped %d", len(res.Skipped))
	}
	fmt.Fprintf(out, "\nimage %s -> %s\n", hash.Short(), path)

	if !cache {
		return nil
	}
	db, err := store.Open(p.CachePath())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PutArtifact(ctx, p.Project.Name, data, hash); err != nil {
		return err
	}
	b := store.NewBuild(p.Project.Name, p.Build.Mode, started, res, hash)
	if err := db.RecordBuild(ctx, b); err != nil {
		return err
	}
	fmt.Fprintf(out, "build %s\n", b.ID)
	return nil
}
