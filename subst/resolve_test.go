package subst

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/substitute/vm"
)

// bindingFixture defines:
//
//	Helper>>pair:with:            native, answers 'pair'
//	Sample>>run: p                ^Helper new pair: 'a' with: 'b'
//	Sample class>>make: p         same body, static
//	Probe class>>probe: x         records x, answers 'probed'
//
// Sample has fields foo (String, 'foo'), id (final String) and the static
// field total (int, 7).
type bindingFixture struct {
	*fixture
	sample *vm.Class
	probed []vm.Value
}

const pairSends = `
    new Helper
    push_string 'a'
    push_string 'b'
    send Helper.pair:with: 2
    return_top
`

func newBindingFixture(t *testing.T, probe vm.Param) *bindingFixture {
	f := &bindingFixture{fixture: newFixture(t)}
	helper := f.class("Helper", "")
	f.native(helper, "pair:with:", false, params(vm.TypeString, vm.TypeString), vm.TypeString,
		func(*vm.Interpreter, vm.Value, []vm.Value) (vm.Value, error) { return "pair", nil })

	f.sample = f.class("Sample", "")
	f.field(f.sample, &vm.Field{Name: "foo", Type: vm.TypeString, Init: "foo"})
	f.field(f.sample, &vm.Field{Name: "id", Type: vm.TypeString, Final: true})
	f.field(f.sample, &vm.Field{Name: "total", Type: vm.TypeInt, Static: true, Init: int64(7)})
	f.method(f.sample, "run:", false, params(vm.TypeString), vm.TypeString, pairSends)
	f.method(f.sample, "make:", true, params(vm.TypeString), vm.TypeString, pairSends)

	p := f.class("Probe", "")
	f.native(p, "probe:", true, []vm.Param{probe}, vm.TypeString,
		func(_ *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) {
			f.probed = append(f.probed, args[0])
			return "probed", nil
		})
	return f
}

func (f *bindingFixture) substitution(on string) (*Substitution, error) {
	d, err := To(f.ct.Lookup("Probe").Method("probe:"))
	if err != nil {
		return nil, err
	}
	return Strict().Member(Method(Named("pair:with:"))).ReplaceWithChain(d).On(Named(on)), nil
}

func TestBindingValues(t *testing.T) {
	tests := []struct {
		pragma string
		typ    vm.Type
		check  func(t *testing.T, got vm.Value, self *vm.Object)
	}{
		{"argument: 0", vm.TypeString, equals("a")},
		{"argument: 1", vm.TypeString, equals("b")},
		{"argument: 2 optional: true", vm.TypeString, equals(nil)},
		{"argument: 5 optional: true", vm.TypeInt, equals(int64(0))},
		{"argument: 0 source: enclosingMethod", vm.TypeString, equals("p")},
		{"argument: 1 source: enclosingMethod optional: true", vm.TypeBool, equals(false)},
		{"this", vm.TypeObject, func(t *testing.T, got vm.Value, self *vm.Object) {
			obj, ok := got.(*vm.Object)
			if !ok || obj.Class().Name != "Helper" {
				t.Errorf("this = %v, want the Helper receiving pair:with:", vm.FormatValue(got))
			}
		}},
		{"this source: enclosingMethod", vm.Type("Sample"), func(t *testing.T, got vm.Value, self *vm.Object) {
			if got != self {
				t.Errorf("this = %v, want the receiver of run:", vm.FormatValue(got))
			}
		}},
		{"allArguments", vm.ArrayOf(vm.TypeString), elems("a", "b")},
		{"allArguments source: enclosingMethod", vm.ArrayOf(vm.TypeObject), elems("p")},
		{"allArguments includeSelf: true source: enclosingMethod", vm.ArrayOf(vm.TypeObject), func(t *testing.T, got vm.Value, self *vm.Object) {
			arr, ok := got.(*vm.Array)
			if !ok || arr.Len() != 2 || arr.At(0) != self || arr.At(1) != "p" {
				t.Errorf("allArguments = %v, want #(self 'p')", vm.FormatValue(got))
			}
		}},
		{"unused", vm.TypeInt, equals(int64(0))},
		{"unused", vm.TypeString, equals(nil)},
		{"stubValue", vm.TypeObject, equals(nil)},
		{"current", vm.TypeString, equals(nil)},
		{"fieldValue: foo", vm.TypeString, equals("foo")},
		{"fieldValue: foo declaringType: Sample", vm.TypeObject, equals("foo")},
		{"fieldValue: total", vm.TypeInt, equals(int64(7))},
		{"selfCallHandle", vm.TypeHandle, func(t *testing.T, got vm.Value, self *vm.Object) {
			h, ok := got.(*vm.Handle)
			if !ok || h.Kind() != vm.HandleSelfCall || !h.Bound() {
				t.Errorf("selfCallHandle = %v, want a bound self-call handle", vm.FormatValue(got))
			}
		}},
		{"selfCallHandle bound: false", vm.TypeObject, func(t *testing.T, got vm.Value, self *vm.Object) {
			h, ok := got.(*vm.Handle)
			if !ok || h.Bound() {
				t.Errorf("selfCallHandle = %v, want an unbound handle", vm.FormatValue(got))
			}
		}},
		{"fieldGetterHandle: foo", vm.TypeHandle, func(t *testing.T, got vm.Value, self *vm.Object) {
			h, ok := got.(*vm.Handle)
			if !ok || h.Kind() != vm.HandleGetter {
				t.Fatalf("fieldGetterHandle = %v, want a getter", vm.FormatValue(got))
			}
			self.Set("foo", "changed")
			if v, err := h.Invoke(vm.NewInterpreter(nil)); err != nil || v != "changed" {
				t.Errorf("getter() = %v, %v; want \"changed\"", v, err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.pragma+"/"+tt.typ.String(), func(t *testing.T) {
			f := newBindingFixture(t, param(tt.typ, tt.pragma))
			sub, err := f.substitution("run:")
			if err != nil {
				t.Fatal(err)
			}
			f.apply(sub)

			self := f.sample.NewInstance()
			if got := f.send(self, "run:", "p"); got != "probed" {
				t.Errorf("run: = %v, want \"probed\"", got)
			}
			if len(f.probed) != 1 {
				t.Fatalf("probe ran %d times, want 1", len(f.probed))
			}
			tt.check(t, f.probed[0], self)
		})
	}
}

func TestBindingValuesInStaticMethod(t *testing.T) {
	tests := []struct {
		pragma string
		typ    vm.Type
		check  func(t *testing.T, got vm.Value, self *vm.Object)
	}{
		{"this source: enclosingMethod optional: true", vm.TypeObject, equals(nil)},
		{"argument: 0 source: enclosingMethod", vm.TypeString, equals("p")},
		{"fieldValue: total", vm.TypeInt, equals(int64(7))},
		// no receiver to prepend
		{"allArguments includeSelf: true source: enclosingMethod", vm.ArrayOf(vm.TypeObject), elems("p")},
		{"selfCallHandle bound: false", vm.TypeHandle, func(t *testing.T, got vm.Value, _ *vm.Object) {
			if h, ok := got.(*vm.Handle); !ok || h.Bound() {
				t.Errorf("selfCallHandle = %v, want an unbound handle", vm.FormatValue(got))
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			f := newBindingFixture(t, param(tt.typ, tt.pragma))
			sub, err := f.substitution("make:")
			if err != nil {
				t.Fatal(err)
			}
			f.apply(sub)
			got, err := vm.NewInterpreter(f.ct).Invoke(f.sample.Method("make:"), nil, "p")
			if err != nil {
				t.Fatal(err)
			}
			if got != "probed" {
				t.Errorf("make: = %v, want \"probed\"", got)
			}
			if len(f.probed) != 1 {
				t.Fatalf("probe ran %d times, want 1", len(f.probed))
			}
			tt.check(t, f.probed[0], nil)
		})
	}
}

func TestBindingErrors(t *testing.T) {
	tests := []struct {
		pragma string
		typ    vm.Type
		on     string
		want   error
	}{
		{"argument: 2", vm.TypeString, "run:", ErrUnsatisfiable},
		{"argument: 1 source: enclosingMethod", vm.TypeString, "run:", ErrUnsatisfiable},
		{"argument: 0", vm.TypeInt, "run:", ErrShapeMismatch},
		{"this", vm.TypeString, "run:", ErrShapeMismatch},
		{"this source: enclosingMethod", vm.TypeObject, "make:", ErrUnsatisfiable},
		{"allArguments", vm.TypeString, "run:", ErrShapeMismatch},
		{"allArguments", vm.ArrayOf(vm.TypeInt), "run:", ErrShapeMismatch},
		{"selfCallHandle", vm.TypeString, "run:", ErrShapeMismatch},
		{"selfCallHandle", vm.TypeHandle, "make:", ErrUnsatisfiable},
		{"fieldValue", vm.TypeString, "run:", ErrUnsatisfiable},
		{"fieldValue: missing", vm.TypeString, "run:", ErrUnsatisfiable},
		{"fieldValue: foo declaringType: Helper", vm.TypeString, "run:", ErrUnsatisfiable},
		{"fieldValue: foo declaringType: Nowhere", vm.TypeString, "run:", ErrUnsatisfiable},
		{"fieldValue: foo", vm.TypeInt, "run:", ErrShapeMismatch},
		{"fieldValue: foo", vm.TypeString, "make:", ErrUnsatisfiable},
		{"fieldGetterHandle: foo", vm.TypeString, "run:", ErrShapeMismatch},
		{"fieldSetterHandle: id", vm.TypeHandle, "run:", ErrUnsatisfiable},
		{"stubValue", vm.TypeString, "run:", ErrShapeMismatch},
		{"bogus", vm.TypeString, "run:", ErrMalformedPragma},
		{"this bound: true", vm.TypeObject, "run:", ErrMalformedPragma},
		{"", vm.TypeObject, "run:", ErrMalformedPragma},
	}

	for _, tt := range tests {
		t.Run(tt.pragma+"/"+tt.on, func(t *testing.T) {
			f := newBindingFixture(t, param(tt.typ, tt.pragma))
			sub, err := f.substitution(tt.on)
			var res *Result
			if err == nil {
				res, err = sub.Build(context.Background(), f.ct)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("failed build returned a result")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Param != 0 {
				t.Errorf("error = %#v, want a ConfigError for parameter 0", err)
			}
		})
	}
}

func TestAllArgumentsAtFieldRead(t *testing.T) {
	tests := []struct {
		pragma string
		empty  bool // want an empty array rather than nil
	}{
		{"allArguments", true},
		{"allArguments nullIfEmpty: true", false},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			f := newFixture(t)
			sample := f.class("Sample", "")
			f.field(sample, &vm.Field{Name: "foo", Type: vm.TypeString, Init: "foo"})
			f.method(sample, "peek", false, nil, vm.TypeString, "push_self\npush_field Sample.foo\nreturn_top")

			var got vm.Value = "unset"
			probe := f.native(f.class("Probe", ""), "seen:", true, []vm.Param{param(vm.ArrayOf(vm.TypeObject), tt.pragma)}, vm.TypeVoid,
				func(_ *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) {
					got = args[0]
					return nil, nil
				})
			f.apply(Strict().Member(Field(Named("foo"))).ReplaceWithChain(MustTo(probe), Original()).On(Any()))

			if v := f.send(sample.NewInstance(), "peek"); v != "foo" {
				t.Errorf("peek = %v, want \"foo\"", v)
			}
			arr, isArr := got.(*vm.Array)
			switch {
			case tt.empty && (!isArr || arr.Len() != 0):
				t.Errorf("bound %v, want an empty array", vm.FormatValue(got))
			case !tt.empty && got != nil:
				t.Errorf("bound %v, want nil", vm.FormatValue(got))
			}
		})
	}
}

func TestPropertyName(t *testing.T) {
	tests := []struct {
		selector string
		want     string
	}{
		{"getFoo", "foo"},
		{"isReady", "ready"},
		{"setCount:", "count"},
		{"getURL", "uRL"},
		{"get", ""},
		{"getter", ""},
		{"run:", ""},
		{"set:to:", ""},
	}
	for _, tt := range tests {
		if got := propertyName(tt.selector); got != tt.want {
			t.Errorf("propertyName(%q) = %q, want %q", tt.selector, got, tt.want)
		}
	}
}

func TestFieldNameFromAccessor(t *testing.T) {
	f := newFixture(t)
	base := f.class("Base", "")
	f.field(base, &vm.Field{Name: "label", Type: vm.TypeString, Init: "base label"})
	sample := f.class("Sample", "Base")
	f.native(sample, "describe", false, nil, vm.TypeString,
		func(*vm.Interpreter, vm.Value, []vm.Value) (vm.Value, error) { return "described", nil })
	f.method(sample, "getLabel", false, nil, vm.TypeString, "push_self\nsend Sample.describe 0\nreturn_top")
	f.method(sample, "getOther", false, nil, vm.TypeString, "push_self\nsend Sample.describe 0\nreturn_top")

	echo := f.native(f.class("Probe", ""), "echo:", true, []vm.Param{param(vm.TypeString, "fieldValue")}, vm.TypeString,
		func(_ *vm.Interpreter, _ vm.Value, args []vm.Value) (vm.Value, error) { return args[0], nil })

	sub := Strict().Member(Method(Named("describe"))).ReplaceWithChain(MustTo(echo)).On(Named("getLabel"))
	f.apply(sub)
	if got := f.send(sample.NewInstance(), "getLabel"); got != "base label" {
		t.Errorf("getLabel = %v, want \"base label\"", got)
	}

	// getOther names a field that does not exist.
	sub = Strict().Member(Method(Named("describe"))).ReplaceWithChain(MustTo(echo)).On(Named("getOther"))
	if _, err := sub.Build(context.Background(), f.ct); !errors.Is(err, ErrUnsatisfiable) {
		t.Errorf("error = %v, want ErrUnsatisfiable", err)
	}
}

func equals(want vm.Value) func(*testing.T, vm.Value, *vm.Object) {
	return func(t *testing.T, got vm.Value, _ *vm.Object) {
		if got != want {
			t.Errorf("bound %v, want %v", vm.FormatValue(got), vm.FormatValue(want))
		}
	}
}

func elems(want ...vm.Value) func(*testing.T, vm.Value, *vm.Object) {
	return func(t *testing.T, got vm.Value, _ *vm.Object) {
		arr, ok := got.(*vm.Array)
		if !ok || arr.Len() != len(want) {
			t.Fatalf("bound %v, want %d elements", vm.FormatValue(got), len(want))
		}
		for i, w := range want {
			if arr.At(i) != w {
				t.Errorf("element %d = %v, want %v", i, arr.At(i), w)
			}
		}
	}
}
