package subst

import (
	"context"
	"testing"

	"github.com/chazu/substitute/asm"
	"github.com/chazu/substitute/vm"
)

// fixture builds small class tables for substitution tests.
type fixture struct {
	t  *testing.T
	ct *vm.ClassTable
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, ct: vm.NewClassTable()}
}

func (f *fixture) class(name, super string) *vm.Class {
	f.t.Helper()
	c, err := f.ct.Define(name, super)
	if err != nil {
		f.t.Fatal(err)
	}
	return c
}

func (f *fixture) field(c *vm.Class, fld *vm.Field) *vm.Field {
	f.t.Helper()
	added, err := c.AddField(fld)
	if err != nil {
		f.t.Fatal(err)
	}
	return added
}

// method assembles src into a new method on c.
func (f *fixture) method(c *vm.Class, selector string, static bool, params []vm.Param, returns vm.Type, src string) *vm.CompiledMethod {
	f.t.Helper()
	m := vm.NewMethod(selector, static, params, returns)
	if err := asm.AssembleMethod(m, src); err != nil {
		f.t.Fatalf("%s: %v", selector, err)
	}
	c.AddMethod(m)
	return m
}

func (f *fixture) native(c *vm.Class, selector string, static bool, params []vm.Param, returns vm.Type, fn vm.NativeFunc) *vm.CompiledMethod {
	m := vm.NewNativeMethod(selector, static, params, returns, fn)
	c.AddMethod(m)
	return m
}

// apply builds and installs sub, failing the test on error.
func (f *fixture) apply(sub *Substitution) *Result {
	f.t.Helper()
	res, err := sub.Build(context.Background(), f.ct)
	if err != nil {
		f.t.Fatalf("Build: %v", err)
	}
	res.Install()
	return res
}

func (f *fixture) send(receiver vm.Value, selector string, args ...vm.Value) vm.Value {
	f.t.Helper()
	v, err := vm.NewInterpreter(f.ct).Send(receiver, selector, args...)
	if err != nil {
		f.t.Fatalf("%s: %v", selector, err)
	}
	return v
}

func param(t vm.Type, pragma string) vm.Param {
	return vm.Param{Type: t, Pragma: pragma}
}

func params(types ...vm.Type) []vm.Param {
	out := make([]vm.Param, len(types))
	for i, t := range types {
		out[i] = vm.Param{Type: t}
	}
	return out
}

// suffix returns a native body appending s to its String argument (nil
// counts as empty).
func suffix(s string) vm.NativeFunc {
	return func(_ *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) {
		prev, _ := args[0].(string)
		return prev + s, nil
	}
}

// counter returns a void native body counting its invocations.
func counter(n *int) vm.NativeFunc {
	return func(*vm.Interpreter, vm.Value, []vm.Value) (vm.Value, error) {
		*n++
		return nil, nil
	}
}
