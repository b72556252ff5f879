package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report the sites the plan would rewrite",
	Long: `Compiles the plan and resolves every substitution without installing or
writing anything. Sites a relaxed plan would skip are listed with the reason.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPlan(cmd)
		if err != nil {
			return err
		}
		_, res, err := build(cmd.Context(), p)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, rm := range res.Methods {
			for _, sr := range rm.Sites {
				fmt.Fprintf(out, "%s\trule %d\t%d steps\n", sr.Site, sr.Rule, sr.Steps)
			}
		}
		for _, ce := range res.Skipped {
			fmt.Fprintf(out, "skipped\t%s\n", ce)
		}
		if failOnSkip, _ := cmd.Flags().GetBool("strict"); failOnSkip && len(res.Skipped) > 0 {
			return fmt.Errorf("%d sites cannot be rewritten", len(res.Skipped))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("strict", false, "fail if any site would be skipped")
}
