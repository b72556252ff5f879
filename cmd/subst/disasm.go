package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/substitute/asm"
	"github.com/chazu/substitute/vm"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [Class[.selector]]...",
	Short: "Print method bodies as assembly",
	Long: `Prints the bodies of the plan's methods after substitution. Arguments
restrict the output to whole classes or single methods. With --original the
bodies are printed as declared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPlan(cmd)
		if err != nil {
			return err
		}
		original, _ := cmd.Flags().GetBool("original")
		prog, res, err := build(cmd.Context(), p)
		if err != nil {
			return err
		}
		if !original {
			res.Install()
		}

		var classes []*vm.Class
		if len(args) == 0 {
			for _, c := range p.Classes {
				classes = append(classes, prog.Classes.Lookup(c.Name))
			}
		}
		out := cmd.OutOrStdout()
		for _, c := range classes {
			for _, m := range c.Methods() {
				if err := printMethod(out, m); err != nil {
					return err
				}
			}
		}
		for _, arg := range args {
			name, selector, single := strings.Cut(arg, ".")
			c := prog.Classes.Lookup(name)
			if c == nil {
				return fmt.Errorf("unknown class %s", name)
			}
			if !single {
				for _, m := range c.Methods() {
					if err := printMethod(out, m); err != nil {
						return err
					}
				}
				continue
			}
			m := c.Method(selector)
			if m == nil {
				return fmt.Errorf("unknown method %s", arg)
			}
			if err := printMethod(out, m); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	disasmCmd.Flags().Bool("original", false, "print bodies without substitutions")
}

func printMethod(out io.Writer, m *vm.CompiledMethod) error {
	if m.IsNative() {
		fmt.Fprintf(out, "; %s <native>\n\n", m)
		return nil
	}
	text, err := asm.Disassemble(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "; %s\n%s\n\n", m, strings.TrimRight(text, "\n"))
	return nil
}
