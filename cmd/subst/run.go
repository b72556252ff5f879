package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/substitute/artifact"
	"github.com/chazu/substitute/vm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the plan's entry method",
	Long: `Compiles the plan, applies its substitutions and invokes the entry method
(a static method named Class.selector). With --image the classes are linked
from a previously written image instead; natives still come from the plan.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPlan(cmd)
		if err != nil {
			return err
		}
		entry, _ := cmd.Flags().GetString("entry")
		if entry == "" {
			entry = p.Project.Entry
		}
		if entry == "" {
			return fmt.Errorf("no entry method: set project.entry or pass --entry")
		}
		rawArgs, _ := cmd.Flags().GetStringArray("arg")
		image, _ := cmd.Flags().GetString("image")
		original, _ := cmd.Flags().GetBool("original")

		prog, res, err := build(cmd.Context(), p)
		if err != nil {
			return err
		}
		ct := prog.Classes
		switch {
		case image != "":
			data, err := os.ReadFile(image)
			if err != nil {
				return err
			}
			img, err := artifact.Unmarshal(data)
			if err != nil {
				return err
			}
			if ct, err = artifact.Link(img, artifact.FromTable(prog.Classes)); err != nil {
				return err
			}
		case !original:
			res.Install()
		}

		class, selector, ok := strings.Cut(entry, ".")
		if !ok {
			return fmt.Errorf("entry %q: expected Class.selector", entry)
		}
		m, err := ct.ResolveMethod(vm.Literal{Kind: vm.LitMethod, Class: class, Member: selector})
		if err != nil {
			return err
		}
		if !m.IsStatic {
			return fmt.Errorf("entry %s is not static", m)
		}
		if len(rawArgs) != m.Arity() {
			return fmt.Errorf("entry %s takes %d arguments, got %d", m, m.Arity(), len(rawArgs))
		}
		values := make([]vm.Value, len(rawArgs))
		for i, a := range rawArgs {
			values[i] = parseValue(a)
		}

		result, err := vm.NewInterpreter(ct).Invoke(m, nil, values...)
		if err != nil {
			return err
		}
		if !m.Returns.IsVoid() {
			fmt.Fprintln(cmd.OutOrStdout(), vm.FormatValue(result))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("entry", "", "entry method as Class.selector (default project.entry)")
	runCmd.Flags().StringArray("arg", nil, "argument for the entry method (repeatable)")
	runCmd.Flags().String("image", "", "link classes from this image instead of the plan")
	runCmd.Flags().Bool("original", false, "run without applying substitutions")
	runCmd.MarkFlagsMutuallyExclusive("image", "original")
}

// parseValue reads an integer, a boolean or nil, and anything else as a
// string.
func parseValue(s string) vm.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "nil":
		return nil
	}
	return s
}
