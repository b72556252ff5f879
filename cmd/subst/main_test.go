package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// greeterDir copies the greeter example into a fresh directory.
func greeterDir(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "examples", "greeter", "subst.toml"))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "subst.toml"), data, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// execute runs the CLI with args, resetting flags left over from earlier
// runs first.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reset(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func reset(cmd *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, c := range cmd.Commands() {
		reset(c)
	}
}

func TestRun(t *testing.T) {
	dir := greeterDir(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"substituted", []string{"run", "-p", dir}, `"Hello, [world]"`},
		{"original", []string{"run", "-p", dir, "--original"}, `"Hello, world"`},
		{"other entry", []string{"run", "-p", dir, "--entry", "Decor.brackets:", "--arg", "x"}, `"[x]"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("output = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	dir := greeterDir(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"arity", []string{"run", "-p", dir, "--arg", "1"}, "takes 0 arguments"},
		{"instance entry", []string{"run", "-p", dir, "--entry", "Greeter.greet"}, "not static"},
		{"malformed entry", []string{"run", "-p", dir, "--entry", "main"}, "expected Class.selector"},
		{"no plan", []string{"run", "-p", t.TempDir()}, "no subst.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestApplyThenRunImage(t *testing.T) {
	dir := greeterDir(t)
	out, err := execute(t, "apply", "-p", dir)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !strings.Contains(out, "rewrote 2 sites in 2 methods") {
		t.Errorf("apply output = %q", out)
	}
	image := filepath.Join(dir, "greeter.cbor")
	if _, err := os.Stat(image); err != nil {
		t.Fatalf("image not written: %v", err)
	}

	out, err = execute(t, "run", "-p", dir, "--image", image)
	if err != nil {
		t.Fatalf("run --image: %v", err)
	}
	if got := strings.TrimSpace(out); got != `"Hello, [world]"` {
		t.Errorf("run --image output = %s", got)
	}

	out, err = execute(t, "history", "-p", dir)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "strict") {
		t.Fatalf("history = %q, want one strict build", out)
	}
	id := strings.Fields(lines[0])[0]

	out, err = execute(t, "history", "-p", dir, id)
	if err != nil {
		t.Fatalf("history %s: %v", id, err)
	}
	for _, want := range []string{"Greeter.greet@2", "read Greeter.name", "Greeter.rename:@2", "write Greeter.name"} {
		if !strings.Contains(out, want) {
			t.Errorf("history %s output lacks %q:\n%s", id, want, out)
		}
	}
}

func TestApplyWithoutCache(t *testing.T) {
	dir := greeterDir(t)
	if _, err := execute(t, "apply", "-p", dir, "--no-cache"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".subst")); !os.IsNotExist(err) {
		t.Errorf("cache directory created with --no-cache: %v", err)
	}
}

func TestCheck(t *testing.T) {
	dir := greeterDir(t)
	out, err := execute(t, "check", "-p", dir, "--strict")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Errorf("check output = %q, want two sites", out)
	}
}

func TestDisasm(t *testing.T) {
	dir := greeterDir(t)
	out, err := execute(t, "disasm", "-p", dir, "Greeter.greet")
	if err != nil {
		t.Fatalf("disasm: %v", err)
	}
	if !strings.Contains(out, "invoke_delegate Decor.brackets: 1") {
		t.Errorf("rewritten greet lacks the delegate call:\n%s", out)
	}

	out, err = execute(t, "disasm", "-p", dir, "--original", "Greeter")
	if err != nil {
		t.Fatalf("disasm --original: %v", err)
	}
	if strings.Contains(out, "invoke_delegate") || !strings.Contains(out, "; Greeter.rename:") {
		t.Errorf("original Greeter bodies:\n%s", out)
	}

	if _, err := execute(t, "disasm", "-p", dir, "Nope"); err == nil {
		t.Error("disasm of an unknown class succeeded")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "subst ") {
		t.Errorf("version output = %q", out)
	}
}
