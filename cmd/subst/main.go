// Subst CLI - applies the substitutions of a subst.toml plan
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/substitute/plan"
)

// Version is filled when building with -ldflags, but *not* when installing
// via "go install".
var Version string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "subst",
	Short:         "Rewrite member accesses into delegate chains.",
	Long:          "Applies the substitutions declared in a subst.toml plan to the plan's classes.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		if logPath == "" {
			commonlog.Configure(verbosity, nil)
		} else {
			commonlog.Configure(verbosity, &logPath)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Report the version of this executable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, "subst ")
		if Version != "" {
			fmt.Fprint(out, Version)
		} else if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Fprint(out, info.Main.Version)
		} else {
			fmt.Fprint(out, "(unknown version)")
		}
		fmt.Fprintln(out)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase logging verbosity (repeatable)")
	rootCmd.PersistentFlags().String("log", "", "write log output to this file instead of stderr")
	rootCmd.PersistentFlags().StringP("plan", "p", ".", "directory holding subst.toml (searched upwards)")
	rootCmd.AddCommand(versionCmd, applyCmd, checkCmd, runCmd, disasmCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadPlan finds the plan named by the --plan flag.
func loadPlan(cmd *cobra.Command) (*plan.Plan, error) {
	dir, _ := cmd.Flags().GetString("plan")
	p, err := plan.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", plan.FileName, dir)
	}
	return p, nil
}
